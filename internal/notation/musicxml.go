package notation

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/Yates-Labs/partimento/internal/score"
)

const (
	// divisions per quarter note; a 4/4 measure is measureDivisions long and
	// divides evenly into 1 to 8, 10, 12, 14 and 16 notes.
	divisions        = 840
	measureDivisions = 4 * divisions

	musicXMLDoctype = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">`
)

type scorePartwise struct {
	XMLName  xml.Name        `xml:"score-partwise"`
	Version  string          `xml:"version,attr"`
	Work     *work           `xml:"work,omitempty"`
	Ident    *identification `xml:"identification,omitempty"`
	PartList partList        `xml:"part-list"`
	Parts    []part          `xml:"part"`
}

type work struct {
	Title string `xml:"work-title"`
}

type identification struct {
	Creators []creator `xml:"creator"`
}

type creator struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

type partList struct {
	ScoreParts []scorePart `xml:"score-part"`
}

type scorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type part struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number     int         `xml:"number,attr"`
	Attributes *attributes `xml:"attributes,omitempty"`
	Notes      []note      `xml:"note"`
}

type attributes struct {
	Divisions int       `xml:"divisions"`
	Key       *keySig   `xml:"key,omitempty"`
	Time      *timeSig  `xml:"time,omitempty"`
	Clef      *clefSign `xml:"clef,omitempty"`
}

type keySig struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode,omitempty"`
}

type timeSig struct {
	Beats    string `xml:"beats"`
	BeatType string `xml:"beat-type"`
}

type clefSign struct {
	Sign         string `xml:"sign"`
	Line         int    `xml:"line"`
	OctaveChange *int   `xml:"clef-octave-change,omitempty"`
}

type note struct {
	Rest     *rest     `xml:"rest,omitempty"`
	Pitch    *xmlPitch `xml:"pitch,omitempty"`
	Duration int       `xml:"duration"`
	Type     string    `xml:"type,omitempty"`
	Lyric    *lyric    `xml:"lyric,omitempty"`
}

type rest struct {
	Measure string `xml:"measure,attr,omitempty"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  *int   `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type lyric struct {
	Number string `xml:"number,attr"`
	Text   string `xml:"text"`
}

// voicePart is one staff to render: its measures, clef and optional figures.
type voicePart struct {
	id      string
	name    string
	clef    clefSign
	music   []score.Measure
	figures func(i, j int) score.FigureSet
}

var noteTypes = map[int]string{
	measureDivisions:     "whole",
	measureDivisions / 2: "half",
	measureDivisions / 4: "quarter",
	measureDivisions / 8: "eighth",
	measureDivisions / 16: "16th",
}

func bassClef() clefSign   { return clefSign{Sign: "F", Line: 4} }
func trebleClef() clefSign { return clefSign{Sign: "G", Line: 2} }
func tenorClef() clefSign {
	down := -1
	return clefSign{Sign: "G", Line: 2, OctaveChange: &down}
}

// durations splits a measure of measureDivisions into n near-equal notes,
// the remainder going to the last one.
func durations(n int) []int {
	if n <= 0 {
		return nil
	}
	each := measureDivisions / n
	out := make([]int, n)
	for i := range out {
		out[i] = each
	}
	out[n-1] += measureDivisions - each*n
	return out
}

// buildScore lays out parts in 4/4 with the given key. Unreadable pitches are
// reported through skip and left out; a measure with nothing playable
// becomes a whole-measure rest.
func buildScore(title, composer string, key score.Key, parts []voicePart, skip func(part string, measure int, pitch string, err error)) scorePartwise {
	doc := scorePartwise{Version: "4.0"}
	if title != "" {
		doc.Work = &work{Title: title}
	}
	if composer != "" {
		doc.Ident = &identification{Creators: []creator{{Type: "composer", Name: composer}}}
	}

	mode := "major"
	if key.Minor {
		mode = "minor"
	}

	for _, vp := range parts {
		doc.PartList.ScoreParts = append(doc.PartList.ScoreParts, scorePart{ID: vp.id, Name: vp.name})
		p := part{ID: vp.id}

		for i, m := range vp.music {
			xm := measure{Number: i + 1}
			if i == 0 {
				c := vp.clef
				xm.Attributes = &attributes{
					Divisions: divisions,
					Key:       &keySig{Fifths: key.Fifths, Mode: mode},
					Time:      &timeSig{Beats: "4", BeatType: "4"},
					Clef:      &c,
				}
			}

			durs := durations(len(m))
			for j, raw := range m {
				pitch, err := score.ParsePitch(raw)
				if err != nil {
					if skip != nil {
						skip(vp.name, i+1, raw, err)
					}
					continue
				}
				n := note{
					Pitch:    toXMLPitch(pitch),
					Duration: durs[j],
					Type:     noteTypes[durs[j]],
				}
				if vp.figures != nil {
					if figs := vp.figures(i, j); len(figs) > 0 {
						n.Lyric = &lyric{Number: "1", Text: strings.Join(figs, " ")}
					}
				}
				xm.Notes = append(xm.Notes, n)
			}
			if len(xm.Notes) == 0 {
				xm.Notes = []note{{Rest: &rest{Measure: "yes"}, Duration: measureDivisions}}
			}
			p.Measures = append(p.Measures, xm)
		}
		doc.Parts = append(doc.Parts, p)
	}
	return doc
}

func toXMLPitch(p score.Pitch) *xmlPitch {
	out := &xmlPitch{Step: string(p.Step), Octave: p.Octave}
	if p.Alter != 0 {
		alter := p.Alter
		out.Alter = &alter
	}
	return out
}

func writeMusicXML(path string, doc scorePartwise) error {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode MusicXML: %w", err)
	}
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(musicXMLDoctype)
	b.WriteString("\n")
	b.Write(body)
	b.WriteString("\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
