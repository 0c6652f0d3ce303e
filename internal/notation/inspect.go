package notation

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported score format")

// Summary describes a MusicXML score at a glance.
type Summary struct {
	Title     string
	Composer  string
	Parts     int
	Measures  int
	KeyFifths *int
	Time      string
	PartNames []string
	Warnings  []string
}

// inspected mirrors only the parts of score-partwise a summary needs.
type inspected struct {
	Work struct {
		Title string `xml:"work-title"`
	} `xml:"work"`
	MovementTitle string `xml:"movement-title"`
	Ident         struct {
		Creators []creator `xml:"creator"`
	} `xml:"identification"`
	PartList struct {
		ScoreParts []scorePart `xml:"score-part"`
	} `xml:"part-list"`
	Parts []struct {
		Measures []struct {
			Attributes []struct {
				Key *struct {
					Fifths int `xml:"fifths"`
				} `xml:"key"`
				Time *struct {
					Beats    string `xml:"beats"`
					BeatType string `xml:"beat-type"`
				} `xml:"time"`
			} `xml:"attributes"`
		} `xml:"measure"`
	} `xml:"part"`
}

// Inspect reads an uncompressed MusicXML file and summarises it.
func Inspect(path string) (Summary, error) {
	if strings.EqualFold(filepath.Ext(path), ".mxl") {
		return Summary{}, fmt.Errorf("%w: compressed MusicXML (.mxl) is not supported", ErrUnsupportedFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var doc inspected
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return Summary{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, path, err)
	}

	s := Summary{
		Title: doc.Work.Title,
		Parts: len(doc.Parts),
	}
	if s.Title == "" {
		s.Title = doc.MovementTitle
	}
	for _, c := range doc.Ident.Creators {
		if c.Type == "composer" {
			s.Composer = strings.TrimSpace(c.Name)
			break
		}
	}
	for _, sp := range doc.PartList.ScoreParts {
		name := strings.TrimSpace(sp.Name)
		if name == "" {
			name = sp.ID
		}
		s.PartNames = append(s.PartNames, name)
	}

	if len(doc.Parts) > 0 {
		first := doc.Parts[0]
		s.Measures = len(first.Measures)
		if len(first.Measures) > 0 {
			for _, attr := range first.Measures[0].Attributes {
				if attr.Key != nil && s.KeyFifths == nil {
					fifths := attr.Key.Fifths
					s.KeyFifths = &fifths
				}
				if attr.Time != nil && s.Time == "" {
					s.Time = attr.Time.Beats + "/" + attr.Time.BeatType
				}
			}
		}
	}

	if s.Parts == 0 {
		s.Warnings = append(s.Warnings, "no parts found")
	}
	if s.Measures == 0 {
		s.Warnings = append(s.Warnings, "no measures found")
	}
	return s, nil
}
