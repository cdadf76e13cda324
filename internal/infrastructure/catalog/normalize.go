package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"ContractsOrchestrator/internal/domain"
)

type opportunity struct {
	NoticeID                  *string   `json:"noticeId"`
	Title                     *string   `json:"title"`
	FullParentPathName        *string   `json:"fullParentPathName"`
	Department                *string   `json:"department"`
	NAICSCode                 *string   `json:"naicsCode"`
	TypeOfSetAsideDescription *string   `json:"typeOfSetAsideDescription"`
	TypeOfSetAside            *string   `json:"typeOfSetAside"`
	Type                      *string   `json:"type"`
	SolicitationNumber        *string   `json:"solicitationNumber"`
	PostedDate                *string   `json:"postedDate"`
	ResponseDeadLine          *string   `json:"responseDeadLine"`
	UILink                    *string   `json:"uiLink"`
	ResourceLinks             []*string `json:"resourceLinks"`
	PlaceOfPerformance        *struct {
		City *struct {
			Name *string `json:"name"`
		} `json:"city"`
		State *struct {
			Code *string `json:"code"`
		} `json:"state"`
		Country *struct {
			Code *string `json:"code"`
		} `json:"country"`
	} `json:"placeOfPerformance"`
}

// Normalize maps one raw opportunity record onto a Notice.
func Normalize(raw json.RawMessage) (domain.Notice, error) {
	var o opportunity
	if err := json.Unmarshal(raw, &o); err != nil {
		return domain.Notice{}, fmt.Errorf("decode opportunity: %w", err)
	}

	n := domain.Notice{
		NoticeID:           o.NoticeID,
		Title:              o.Title,
		Agency:             firstNonEmpty(o.FullParentPathName, o.Department),
		NAICS:              o.NAICSCode,
		SetAside:           firstNonNil(o.TypeOfSetAsideDescription, o.TypeOfSetAside),
		Type:               o.Type,
		SolicitationNumber: o.SolicitationNumber,
		Dates:              domain.NoticeDates{Posted: o.PostedDate, ResponseDue: o.ResponseDeadLine},
		URLs:               domain.NoticeURLs{Notice: trimmed(o.UILink), Attachments: []domain.Attachment{}},
		Raw:                raw,
	}

	if p := o.PlaceOfPerformance; p != nil {
		if p.City != nil {
			n.PlaceOfPerformance.City = p.City.Name
		}
		if p.State != nil {
			n.PlaceOfPerformance.State = p.State.Code
		}
		if p.Country != nil {
			n.PlaceOfPerformance.Country = p.Country.Code
		}
	}

	for i, link := range o.ResourceLinks {
		var u *string
		if link != nil && *link != "" {
			u = link
		}
		n.URLs.Attachments = append(n.URLs.Attachments, domain.Attachment{
			Name: fmt.Sprintf("Attachment %d", i+1),
			URL:  u,
		})
	}
	return n, nil
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
