// Package branch defines the per-retailer extraction profiles and the hard
// detectors that can force routing without a classifier call.
package branch

import (
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// DefaultBranchID is the fallback profile when routing cannot decide.
const DefaultBranchID = "xxxlutz_default"

// Branch IDs.
const (
	XXXLutzID   = "xxxlutz_default"
	MomaxBGID   = "momax_bg"
	PortaID     = "porta"
	BraunID     = "braun"
	SegmullerID = "segmuller"
)

// PDFText provides digital text from raw PDF bytes. Implementations shell
// out to a text extractor; detectors treat any error as "no text".
type PDFText interface {
	FirstPageText(data []byte) (string, error)
	PageTexts(data []byte) ([]string, error)
}

// Branch is one extraction profile bound to a retailer's document layout.
type Branch struct {
	ID                         string
	Label                      string
	Description                string
	SystemPrompt               string
	BuildUserInstructions      func(sourcePriority []string) string
	EnableItemCodeVerification bool
	IsMomaxBG                  bool
	// HardDetector forces this branch when it returns true. Must fail
	// closed: any internal error means false.
	HardDetector func(attachments []model.Attachment, pdf PDFText) bool
}

// Registry holds the fixed set of branches in routing priority order.
type Registry struct {
	branches []*Branch
	byID     map[string]*Branch
}

// NewRegistry builds the standard five-branch registry.
func NewRegistry() *Registry {
	branches := []*Branch{
		{
			ID:    XXXLutzID,
			Label: "XXXLutz Default",
			Description: "Default XXLutz/Moemax extraction profile for standard emails and" +
				" furnplan-style attachments.",
			SystemPrompt:               defaultSystemPrompt,
			BuildUserInstructions:      buildUserInstructionsDefault,
			EnableItemCodeVerification: true,
		},
		{
			ID:    MomaxBGID,
			Label: "MOMAX BG",
			Description: "Bulgaria MOMAX/MOEMAX/AIKO split-order profile with BG-specific" +
				" extraction rules and downstream normalization.",
			SystemPrompt:               defaultSystemPrompt,
			BuildUserInstructions:      buildUserInstructionsMomaxBG,
			EnableItemCodeVerification: true,
			IsMomaxBG:                  true,
			HardDetector:               IsMomaxBGTwoPDFCase,
		},
		{
			ID:                         PortaID,
			Label:                      "Porta",
			Description:                "Porta orders (email + PDF) with second-pass item-code verification.",
			SystemPrompt:               portaSystemPrompt,
			BuildUserInstructions:      buildUserInstructionsPorta,
			EnableItemCodeVerification: true,
		},
		{
			ID:                         BraunID,
			Label:                      "Braun",
			Description:                "BRAUN Moebel-Center orders (email + PDF) with second-pass item-code verification.",
			SystemPrompt:               braunSystemPrompt,
			BuildUserInstructions:      buildUserInstructionsBraun,
			EnableItemCodeVerification: true,
		},
		{
			ID:    SegmullerID,
			Label: "Segmuller",
			Description: "Segmuller orders identified by sender domain @segmueller.de and PDF/order" +
				" content that mentions Segmueller/Segmuller.",
			SystemPrompt:          segmullerSystemPrompt,
			BuildUserInstructions: buildUserInstructionsSegmuller,
		},
	}

	byID := make(map[string]*Branch, len(branches))
	for _, b := range branches {
		byID[b.ID] = b
	}
	return &Registry{branches: branches, byID: byID}
}

// All returns the branches in routing priority order.
func (r *Registry) All() []*Branch { return r.branches }

// Get returns the branch for the ID, falling back to the default profile for
// unknown or empty IDs.
func (r *Registry) Get(id string) *Branch {
	if b, ok := r.byID[strings.TrimSpace(id)]; ok {
		return b
	}
	return r.byID[DefaultBranchID]
}

// Has reports whether the ID names a known branch.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[strings.TrimSpace(id)]
	return ok
}
