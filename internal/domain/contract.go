package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Attachment is a named link published with a catalog notice.
type Attachment struct {
	Name string  `json:"name"`
	URL  *string `json:"url"`
}

// PlaceOfPerformance is where the contracted work happens.
type PlaceOfPerformance struct {
	City    *string `json:"city"`
	State   *string `json:"state"`
	Country *string `json:"country"`
}

// NoticeDates groups the catalog timestamps, kept as the catalog reports them.
type NoticeDates struct {
	Posted      *string `json:"posted"`
	ResponseDue *string `json:"responseDue"`
}

// NoticeURLs groups the public links of a notice.
type NoticeURLs struct {
	Notice      *string      `json:"samNotice"`
	Attachments []Attachment `json:"attachments"`
}

// Notice is a normalized catalog record as returned to sync callers.
type Notice struct {
	NoticeID           *string            `json:"noticeId"`
	Title              *string            `json:"title"`
	Agency             *string            `json:"agency"`
	NAICS              *string            `json:"naics"`
	SetAside           *string            `json:"setAside"`
	Type               *string            `json:"type"`
	SolicitationNumber *string            `json:"solicitationNumber"`
	PlaceOfPerformance PlaceOfPerformance `json:"placeOfPerformance"`
	Dates              NoticeDates        `json:"dates"`
	URLs               NoticeURLs         `json:"urls"`
	Raw                json.RawMessage    `json:"raw"`
}

// Contract is the persisted row for one notice, keyed by NoticeID.
type Contract struct {
	NoticeID           string
	Title              *string
	Agency             *string
	NAICS              *string
	SetAside           *string
	NoticeType         *string
	SolicitationNumber *string
	PlaceCity          *string
	PlaceState         *string
	PlaceCountry       *string
	PostedAt           *time.Time
	ResponseDueAt      *time.Time
	NoticeURL          *string
	Attachments        []Attachment
	Raw                json.RawMessage
	UpdatedAt          time.Time
}

// Upload is a user-provided document stored under a notice prefix.
type Upload struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// CatalogQuery filters one catalog search.
type CatalogQuery struct {
	PostedFrom time.Time
	PostedTo   time.Time
	Limit      int
	Offset     int
	Keywords   string
	NAICS      string
	State      string
}

// CatalogPage is one page of normalized catalog search results.
type CatalogPage struct {
	Total   int
	Notices []Notice
}

// Contract converts the notice into its persisted row. ok is false when the
// notice has no id and must not be stored.
func (n Notice) Contract() (Contract, bool) {
	if n.NoticeID == nil || *n.NoticeID == "" {
		return Contract{}, false
	}
	return Contract{
		NoticeID:           *n.NoticeID,
		Title:              n.Title,
		Agency:             n.Agency,
		NAICS:              n.NAICS,
		SetAside:           n.SetAside,
		NoticeType:         n.Type,
		SolicitationNumber: n.SolicitationNumber,
		PlaceCity:          n.PlaceOfPerformance.City,
		PlaceState:         n.PlaceOfPerformance.State,
		PlaceCountry:       n.PlaceOfPerformance.Country,
		PostedAt:           ParseTimestamp(n.Dates.Posted),
		ResponseDueAt:      ParseTimestamp(n.Dates.ResponseDue),
		NoticeURL:          n.URLs.Notice,
		Attachments:        n.URLs.Attachments,
		Raw:                n.Raw,
	}, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseTimestamp accepts the date formats the catalog and its callers use;
// anything unparseable yields nil. Zone-less values are read as UTC.
func ParseTimestamp(v *string) *time.Time {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
