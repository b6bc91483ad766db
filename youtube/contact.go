package youtube

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ContactInfo is what a channel's additional-info table discloses.
type ContactInfo struct {
	// Email is empty unless the address was revealed.
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
}

// ParseContactTable reads the outer HTML of the About panel's info table.
// Each row contributes the trimmed text of its last cell when non-empty.
// The first value is the email when haveEmail is set; the last value is the
// location. A table without values yields ErrNoContactInfo.
func ParseContactTable(html string, haveEmail bool) (ContactInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ContactInfo{}, fmt.Errorf("youtube: parse info table: %w", err)
	}

	var values []string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		td := tr.Find("td").Last()
		if td.Length() == 0 {
			return
		}
		if v := strings.TrimSpace(td.Text()); v != "" {
			values = append(values, v)
		}
	})
	if len(values) == 0 {
		return ContactInfo{}, ErrNoContactInfo
	}

	info := ContactInfo{Location: values[len(values)-1]}
	if haveEmail {
		info.Email = values[0]
	}
	return info, nil
}
