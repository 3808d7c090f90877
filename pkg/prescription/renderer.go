package prescription

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Document is the data printed on one prescription.
type Document struct {
	DoctorName      string
	DoctorSpecialty string
	PatientName     string
	PatientAge      int
	CareToBeTaken   string
	Medicines       string
}

type DocumentRenderer interface {
	Render(doc Document) ([]byte, error)
}

// PDFRenderer lays out a single A4 page in points.
type PDFRenderer struct {
	tmpl     Template
	compress bool
}

func NewPDFRenderer(tmpl Template) (*PDFRenderer, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &PDFRenderer{tmpl: tmpl, compress: true}, nil
}

func (r *PDFRenderer) Render(doc Document) ([]byte, error) {
	t := r.tmpl

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(t.Margin, t.Margin, t.Margin)
	pdf.SetAutoPageBreak(true, t.Margin)
	pdf.SetTitle(t.Subtitle, true)
	pdf.SetCreator(t.Title, true)
	pdf.AddPage()

	// Core fonts are cp1252; names and drug lists may carry accents.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	line := func(size float64, align, text string) {
		pdf.SetFont(t.FontFamily, "", size)
		pdf.MultiCell(0, size*1.2, tr(text), "", align, false)
	}
	indented := func(text string) {
		pdf.SetLeftMargin(t.Margin + t.Indent)
		pdf.SetX(t.Margin + t.Indent)
		line(t.BodySize, "L", text)
		pdf.SetLeftMargin(t.Margin)
		pdf.SetX(t.Margin)
	}
	moveDown := func() {
		pdf.Ln(t.BodySize * 1.2)
	}

	line(t.TitleSize, "C", t.Title)
	line(t.BodySize, "C", t.Subtitle)

	moveDown()
	line(t.BodySize, "L", t.DoctorPrefix+doc.DoctorName)
	line(t.BodySize, "L", t.SpecialtyPrefix+doc.DoctorSpecialty)

	moveDown()
	line(t.BodySize, "L", t.PatientPrefix+doc.PatientName)
	line(t.BodySize, "L", fmt.Sprintf(t.AgeFormat, doc.PatientAge))

	moveDown()
	line(t.BodySize, "L", t.CareHeading)
	indented(doc.CareToBeTaken)

	moveDown()
	line(t.BodySize, "L", t.MedicinesHeading)
	indented(doc.Medicines)

	moveDown()
	line(t.FooterSize, "C", t.Footer)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render prescription pdf: %w", err)
	}
	return buf.Bytes(), nil
}
