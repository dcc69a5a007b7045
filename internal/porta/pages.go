package porta

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Page is one rendered PDF page with the digital text layer extracted for it.
type Page struct {
	Name string
	Text string
}

// OrderedPages returns the non-empty page texts sorted by the page number
// encoded in the image name ("order-3.png" sorts as page 3). Names without a
// page suffix sort last, then alphabetically.
func OrderedPages(pageTexts map[string]string) []Page {
	pages := make([]Page, 0, len(pageTexts))
	numbers := make(map[string]int, len(pageTexts))
	for name, text := range pageTexts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		num, ok := pageNumberFromName(name)
		if !ok {
			num = 1_000_000_000
		}
		numbers[name] = num
		pages = append(pages, Page{Name: name, Text: text})
	}
	sort.Slice(pages, func(i, j int) bool {
		if numbers[pages[i].Name] != numbers[pages[j].Name] {
			return numbers[pages[i].Name] < numbers[pages[j].Name]
		}
		return pages[i].Name < pages[j].Name
	})
	return pages
}

func pageNumberFromName(name string) (int, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	m := pageNumberedRe.FindStringSubmatch(stem)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// nonBlankLines splits a page text into trimmed non-empty lines.
func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
