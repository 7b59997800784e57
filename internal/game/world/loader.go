package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kvance/estate/internal/game/schedule"
)

// yamlWorldFile is the top-level YAML structure for content files.
type yamlWorldFile struct {
	World yamlWorld `yaml:"world"`
}

type yamlWorld struct {
	Player    *yamlEntity   `yaml:"player"`
	Narrator  *yamlEntity   `yaml:"narrator"`
	Rooms     []yamlRoom    `yaml:"rooms"`
	People    []yamlEntity  `yaml:"people"`
	Mysteries []yamlMystery `yaml:"mysteries"`
}

type yamlRoom struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	ShortDescription string `yaml:"shortDescription"`
	Description      string `yaml:"description"`
	Color            string `yaml:"color"`
	Invisible        bool   `yaml:"invisible"`
	Exits            []Exit `yaml:"exits"`
}

type yamlEntity struct {
	ID               string              `yaml:"id"`
	Name             string              `yaml:"name"`
	ShortDescription string              `yaml:"shortDescription"`
	Description      string              `yaml:"description"`
	Color            string              `yaml:"color"`
	Inside           string              `yaml:"inside"`
	Invisible        bool                `yaml:"invisible"`
	Pronouns         string              `yaml:"pronouns"`
	Profession       string              `yaml:"profession"`
	Personality      string              `yaml:"personality"`
	Age              int                 `yaml:"age"`
	Relationships    map[string]string   `yaml:"relationships"`
	Schedule         []schedule.Template `yaml:"schedule"`
}

type yamlMystery struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name"`
	ShortDescription string            `yaml:"shortDescription"`
	Description      string            `yaml:"description"`
	State            string            `yaml:"state"`
	Hints            map[string]string `yaml:"hints"`
}

// LoadFromFile reads one content YAML file into an original entity map.
//
// Postcondition: returns a referentially valid entity map or an error
// naming the authoring problem.
func LoadFromFile(path string) (map[string]*Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content file %s: %w", path, err)
	}
	original, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return original, nil
}

// LoadFromBytes parses and validates content from YAML bytes.
func LoadFromBytes(data []byte) (map[string]*Entity, error) {
	var file yamlWorldFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing content YAML: %w", err)
	}

	original, err := convertYAMLWorld(file.World)
	if err != nil {
		return nil, err
	}
	if err := validate(original); err != nil {
		return nil, fmt.Errorf("validating content: %w", err)
	}
	return original, nil
}

// LoadFromDir loads every YAML file in a directory and merges them into one
// entity map. Duplicate IDs across files are an authoring error.
func LoadFromDir(dir string) (map[string]*Entity, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading content directory %s: %w", dir, err)
	}

	merged := map[string]*Entity{}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading content file %s: %w", name, err)
		}
		var file yamlWorldFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		part, err := convertYAMLWorld(file.World)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		for id, e := range part {
			if _, dup := merged[id]; dup {
				return nil, fmt.Errorf("%s: duplicate entity ID %q", name, id)
			}
			merged[id] = e
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no content files found in %s", dir)
	}

	if err := validate(merged); err != nil {
		return nil, fmt.Errorf("validating content: %w", err)
	}
	return merged, nil
}

func convertYAMLWorld(yw yamlWorld) (map[string]*Entity, error) {
	original := map[string]*Entity{}

	add := func(e *Entity) error {
		if e.ID == "" {
			return fmt.Errorf("entity %q: id must not be empty", e.Name)
		}
		if _, dup := original[e.ID]; dup {
			return fmt.Errorf("duplicate entity ID %q", e.ID)
		}
		original[e.ID] = e
		return nil
	}

	for _, yr := range yw.Rooms {
		room := &Entity{
			ID:               yr.ID,
			Kind:             KindRoom,
			Name:             yr.Name,
			ShortDescription: strings.TrimSpace(yr.ShortDescription),
			Description:      strings.TrimSpace(yr.Description),
			Color:            yr.Color,
			Invisible:        yr.Invisible,
			Exits:            yr.Exits,
		}
		if err := add(room); err != nil {
			return nil, err
		}
	}

	for i := range yw.People {
		if err := add(convertPerson(&yw.People[i], KindPerson)); err != nil {
			return nil, err
		}
	}
	if yw.Player != nil {
		if err := add(convertPerson(yw.Player, KindPlayer)); err != nil {
			return nil, err
		}
	}
	if yw.Narrator != nil {
		if err := add(convertPerson(yw.Narrator, KindNarrator)); err != nil {
			return nil, err
		}
	}

	for _, ym := range yw.Mysteries {
		state := MysteryState(ym.State)
		if state == "" {
			state = MysteryVeiled
		}
		switch state {
		case MysteryVeiled, MysteryAvailable, MysteryRevealed, MysterySolved:
		default:
			return nil, fmt.Errorf("mystery %q: invalid state %q", ym.ID, ym.State)
		}
		mystery := &Entity{
			ID:               ym.ID,
			Kind:             KindMystery,
			Name:             ym.Name,
			ShortDescription: strings.TrimSpace(ym.ShortDescription),
			Description:      strings.TrimSpace(ym.Description),
			Invisible:        true,
			MysteryState:     state,
			Hints:            ym.Hints,
		}
		if err := add(mystery); err != nil {
			return nil, err
		}
	}

	return original, nil
}

func convertPerson(ye *yamlEntity, kind Kind) *Entity {
	return &Entity{
		ID:               ye.ID,
		Kind:             kind,
		Name:             ye.Name,
		ShortDescription: strings.TrimSpace(ye.ShortDescription),
		Description:      strings.TrimSpace(ye.Description),
		Color:            ye.Color,
		Inside:           ye.Inside,
		Invisible:        ye.Invisible,
		Pronouns:         ye.Pronouns,
		Profession:       ye.Profession,
		Personality:      ye.Personality,
		Age:              ye.Age,
		Relationships:    ye.Relationships,
		ScheduleTemplate: ye.Schedule,
	}
}
