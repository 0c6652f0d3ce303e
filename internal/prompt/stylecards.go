package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultStyle is the card used when none is configured.
const DefaultStyle = "J. S. Bach"

var ErrUnknownStyle = errors.New("unknown style card")

//go:embed stylecards.yaml
var builtinCards []byte

// StyleCard describes a composer's idiom. It is serialised into the
// generation prompt to steer texture, cadences and chromaticism.
type StyleCard struct {
	Name         string `yaml:"name" json:"name"`
	Era          string `yaml:"era" json:"era"`
	BassTexture  string `yaml:"bass_texture" json:"bass_texture"`
	CadencePref  string `yaml:"cadence_pref" json:"cadence_pref"`
	Chromaticism string `yaml:"chromaticism" json:"chromaticism"`
}

// StyleCards maps a short style key ("Furno", "J. S. Bach") to its card.
type StyleCards map[string]StyleCard

// LoadStyleCards returns the built-in cards, overlaid with the cards in
// extraPath when it is non-empty. Cards in the extra file replace built-ins
// with the same key.
func LoadStyleCards(extraPath string) (StyleCards, error) {
	cards, err := parseStyleCards(builtinCards)
	if err != nil {
		return nil, fmt.Errorf("parse built-in style cards: %w", err)
	}
	if extraPath == "" {
		return cards, nil
	}

	data, err := os.ReadFile(extraPath)
	if err != nil {
		return nil, fmt.Errorf("read style cards %s: %w", extraPath, err)
	}
	extra, err := parseStyleCards(data)
	if err != nil {
		return nil, fmt.Errorf("parse style cards %s: %w", extraPath, err)
	}
	for k, c := range extra {
		cards[k] = c
	}
	return cards, nil
}

func parseStyleCards(data []byte) (StyleCards, error) {
	cards := StyleCards{}
	if err := yaml.Unmarshal(data, &cards); err != nil {
		return nil, err
	}
	for k, c := range cards {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("style card %q has no name", k)
		}
	}
	return cards, nil
}

// Lookup finds a card by key, ignoring case and surrounding space.
func (s StyleCards) Lookup(key string) (StyleCard, error) {
	if c, ok := s[key]; ok {
		return c, nil
	}
	want := strings.ToLower(strings.TrimSpace(key))
	for k, c := range s {
		if strings.ToLower(k) == want {
			return c, nil
		}
	}
	return StyleCard{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownStyle, key, strings.Join(s.Keys(), ", "))
}

// Keys returns the card keys in sorted order.
func (s StyleCards) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
