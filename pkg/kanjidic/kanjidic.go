// Package kanjidic provides the character-reading lookup used to align
// kanji with their readings. Single characters are read from KANJIDIC2;
// longer words fall back to the JMdict lexicon.
package kanjidic

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/japaniel/termbank/pkg/kana"
)

// Lookup resolves the on and kun readings of a surface form. Readings are
// katakana with okurigana separators removed.
type Lookup interface {
	Readings(surface string) (on, kun []string)
}

// character mirrors one <character> element of kanjidic2.xml.
type character struct {
	Literal        string `xml:"literal"`
	ReadingMeaning struct {
		RMGroup []struct {
			Reading []struct {
				Value string `xml:",chardata"`
				Type  string `xml:"r_type,attr"`
			} `xml:"reading"`
		} `xml:"rmgroup"`
	} `xml:"reading_meaning"`
}

type readings struct {
	on, kun []string
}

// Dictionary holds KANJIDIC2 readings keyed by character.
type Dictionary struct {
	chars map[string]readings
}

// Load parses the kanjidic2.xml file at path.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("kanjidic: %s: %w", path, fs.ErrNotExist)
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse streams <character> elements from r. Only the first rmgroup is
// consulted, matching how KANJIDIC2 lists Japanese readings.
func Parse(r io.Reader) (*Dictionary, error) {
	d := &Dictionary{chars: make(map[string]readings)}
	dec := xml.NewDecoder(r)
	// kanjidic2.xml declares entities in its DTD; unknown ones are kept verbatim.
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kanjidic: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "character" {
			continue
		}
		var c character
		if err := dec.DecodeElement(&c, &start); err != nil {
			return nil, fmt.Errorf("kanjidic: %w", err)
		}
		if c.Literal == "" || len(c.ReadingMeaning.RMGroup) == 0 {
			continue
		}

		var rd readings
		for _, reading := range c.ReadingMeaning.RMGroup[0].Reading {
			value := kana.ToKatakana(kana.CleanReading(reading.Value))
			if value == "" {
				continue
			}
			switch reading.Type {
			case "ja_on":
				rd.on = append(rd.on, value)
			case "ja_kun":
				rd.kun = append(rd.kun, value)
			}
		}
		d.chars[c.Literal] = rd
	}
	return d, nil
}

// Len returns the number of characters loaded.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.chars)
}

// Readings returns the readings of a single character. Longer surfaces have
// no KANJIDIC entry.
func (d *Dictionary) Readings(surface string) (on, kun []string) {
	if d == nil {
		return nil, nil
	}
	rd, ok := d.chars[surface]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), rd.on...), append([]string(nil), rd.kun...)
}
