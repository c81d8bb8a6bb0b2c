package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/export"
	"github.com/FACorreiaa/gift-ledger/pkg/mail"
)

var ErrMailDisabled = errors.New("email is not configured")

var emailTemplate = template.Must(template.New("ledger").Parse(`<!doctype html>
<html lang="ko">
<body style="font-family:sans-serif">
<h2>{{.Title}}</h2>
<p>{{.Summary.Count}}건 · 합계 {{.Summary.TotalDisplay}} ({{.Summary.TotalKorean}})</p>
{{if .Summary.NeedsReview}}<p>확인이 필요한 항목 {{.Summary.NeedsReview}}건</p>{{end}}
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>번호</th><th>이름</th><th>금액</th><th>비고</th></tr>
{{range .Records}}<tr><td>{{.Number}}</td><td>{{.Name}}</td><td>{{.Amount}}</td><td>{{.Notes}}</td></tr>
{{end}}</table>
{{if .ShareURL}}<p><a href="{{.ShareURL}}">장부 열기</a></p>{{end}}
</body>
</html>`))

type emailView struct {
	Title    string
	Summary  ledger.Summary
	Records  []ledger.Record
	ShareURL string
}

// EmailInput addresses a ledger to one or more recipients.
type EmailInput struct {
	To      []string        `json:"to"`
	Title   string          `json:"title"`
	Dialect string          `json:"dialect"`
	Records []ledger.Record `json:"records"`
}

// EmailLedger sends the table as an HTML summary with the CSV attached and a
// share link in the body.
func (s *LedgerService) EmailLedger(ctx context.Context, in EmailInput) (mail.Result, error) {
	if s.mailer == nil {
		return mail.Result{}, ErrMailDisabled
	}

	csvFile, err := s.ExportCSV(in.Records, in.Dialect)
	if err != nil {
		return mail.Result{}, err
	}
	link, err := s.Share(in.Records)
	if err != nil {
		return mail.Result{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "방명록 장부"
	}
	records := ledger.Renumber(in.Records)
	view := emailView{Title: title, Summary: ledger.Summarize(records), Records: records, ShareURL: link.URL}

	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, view); err != nil {
		return mail.Result{}, fmt.Errorf("render email: %w", err)
	}

	return s.mailer.Send(ctx, mail.Message{
		To:      in.To,
		Subject: fmt.Sprintf("%s (%s)", title, export.TotalLabel(records)),
		HTML:    body.String(),
		Text:    fmt.Sprintf("%s\n%d건, 합계 %s\n%s", title, view.Summary.Count, view.Summary.TotalDisplay, link.URL),
		Attachments: []mail.Attachment{{
			Filename:    csvFile.Name,
			ContentType: csvFile.ContentType,
			Content:     csvFile.Data,
		}},
	})
}
