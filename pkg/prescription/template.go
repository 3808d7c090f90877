package prescription

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template holds the fixed wording and layout of a prescription document.
type Template struct {
	Title            string  `yaml:"title"`
	Subtitle         string  `yaml:"subtitle"`
	DoctorPrefix     string  `yaml:"doctor_prefix"`
	SpecialtyPrefix  string  `yaml:"specialty_prefix"`
	PatientPrefix    string  `yaml:"patient_prefix"`
	AgeFormat        string  `yaml:"age_format"`
	CareHeading      string  `yaml:"care_heading"`
	MedicinesHeading string  `yaml:"medicines_heading"`
	Footer           string  `yaml:"footer"`
	FontFamily       string  `yaml:"font_family"`
	TitleSize        float64 `yaml:"title_size"`
	BodySize         float64 `yaml:"body_size"`
	FooterSize       float64 `yaml:"footer_size"`
	Margin           float64 `yaml:"margin"`
	Indent           float64 `yaml:"indent"`
}

func DefaultTemplate() Template {
	return Template{
		Title:            "MediConnect",
		Subtitle:         "Official Digital Prescription",
		DoctorPrefix:     "Doctor: Dr. ",
		SpecialtyPrefix:  "Specialty: ",
		PatientPrefix:    "Patient: ",
		AgeFormat:        "Age: %d Years",
		CareHeading:      "Care to be taken:",
		MedicinesHeading: "Medicines:",
		Footer:           "Digitally generated prescription. No signature required.",
		FontFamily:       "Helvetica",
		TitleSize:        24,
		BodySize:         12,
		FooterSize:       10,
		Margin:           50,
		Indent:           20,
	}
}

// LoadTemplate overlays the YAML file at path onto DefaultTemplate. An empty
// path returns the defaults.
func LoadTemplate(path string) (Template, error) {
	tmpl := DefaultTemplate()
	if path == "" {
		return tmpl, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read prescription template: %w", err)
	}
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return Template{}, fmt.Errorf("parse prescription template: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return Template{}, err
	}
	return tmpl, nil
}

func (t Template) Validate() error {
	if t.Title == "" {
		return errors.New("prescription template: title is required")
	}
	if t.TitleSize <= 0 || t.BodySize <= 0 || t.FooterSize <= 0 {
		return errors.New("prescription template: font sizes must be positive")
	}
	if t.Margin < 0 || t.Indent < 0 {
		return errors.New("prescription template: margin and indent must not be negative")
	}
	return nil
}
