package router

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/furnbridge/orderdesk/internal/model"
)

// ruleSpec is one operator-maintained routing override as written in the
// rules file. At least one of the regex fields must be set; a message
// matches when every set regex matches.
type ruleSpec struct {
	Branch       string `yaml:"branch"`
	Reason       string `yaml:"reason"`
	SenderRegex  string `yaml:"sender_regex"`
	SubjectRegex string `yaml:"subject_regex"`
	PDFRegex     string `yaml:"pdf_regex"`
}

type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

// LoadRules reads operator routing overrides from a YAML file and compiles
// them into ad-hoc rules. They are evaluated after the built-in rules.
func LoadRules(path string) ([]adHocRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "router: read rules file %s", path)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "router: parse rules file %s", path)
	}

	rules := make([]adHocRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := compileRule(spec)
		if err != nil {
			return nil, eris.Wrapf(err, "router: rules file %s rule %d", path, i+1)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func compileRule(spec ruleSpec) (adHocRule, error) {
	if spec.Branch == "" {
		return adHocRule{}, eris.New("missing branch")
	}
	if spec.SenderRegex == "" && spec.SubjectRegex == "" && spec.PDFRegex == "" {
		return adHocRule{}, eris.New("no match condition")
	}

	var senderRe, subjectRe, pdfRe *regexp.Regexp
	var err error
	if spec.SenderRegex != "" {
		if senderRe, err = regexp.Compile(spec.SenderRegex); err != nil {
			return adHocRule{}, eris.Wrap(err, "sender_regex")
		}
	}
	if spec.SubjectRegex != "" {
		if subjectRe, err = regexp.Compile(spec.SubjectRegex); err != nil {
			return adHocRule{}, eris.Wrap(err, "subject_regex")
		}
	}
	if spec.PDFRegex != "" {
		if pdfRe, err = regexp.Compile(spec.PDFRegex); err != nil {
			return adHocRule{}, eris.Wrap(err, "pdf_regex")
		}
	}

	reason := spec.Reason
	if reason == "" {
		reason = "rules_file:" + spec.Branch
	}

	return adHocRule{
		branchID: spec.Branch,
		reason:   reason,
		match: func(msg model.IngestedEmail, firstPages string) bool {
			if senderRe != nil && !senderRe.MatchString(msg.Sender) {
				return false
			}
			if subjectRe != nil && !subjectRe.MatchString(msg.Subject) {
				return false
			}
			if pdfRe != nil && !pdfRe.MatchString(firstPages) {
				return false
			}
			return true
		},
	}, nil
}
