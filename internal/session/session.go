// Package session derives the per-launch identity handed to the game process.
package session

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxNameLen matches the game's limit on player names.
const maxNameLen = 16

// Options are the identity parameters for one launch. An empty AuthToken
// means the game runs offline.
type Options struct {
	Username  string
	SessionID uuid.UUID
	AuthToken string
}

// CompactID returns the session id without dashes, the form the game expects.
func (o Options) CompactID() string {
	return strings.ReplaceAll(o.SessionID.String(), "-", "")
}

// NameSource produces display names for players who did not pick one.
type NameSource interface {
	Generate() string
}

// Generator produces random display names and never hands out the same name
// twice in a row.
type Generator struct {
	mu   sync.Mutex
	rand *rand.Rand
	last string
}

// NewGenerator seeds a name generator. A nil source uses a random seed.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rand: rand.New(src)}
}

// Generate returns an adjective-noun-number name of at most 16 characters.
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		name := g.candidate()
		if name != g.last {
			g.last = name
			return name
		}
	}
}

func (g *Generator) candidate() string {
	adj := adjectives[g.rand.IntN(len(adjectives))]
	noun := nouns[g.rand.IntN(len(nouns))]
	suffix := fmt.Sprintf("%d", g.rand.IntN(1000))
	name := adj + noun
	if room := maxNameLen - len(suffix); len(name) > room {
		name = name[:room]
	}
	return name + suffix
}

// Derive fills in a display name when username is blank and assigns a fresh
// session id. The auth token is always empty.
func Derive(username string, names NameSource) (Options, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		if names == nil {
			return Options{}, fmt.Errorf("session: no name source for blank username")
		}
		username = names.Generate()
	}
	id, err := uuid.NewUUID()
	if err != nil {
		return Options{}, fmt.Errorf("session: generate id: %w", err)
	}
	return Options{Username: username, SessionID: id}, nil
}

var adjectives = []string{
	"Amber", "Brave", "Calm", "Clever", "Cosmic", "Crimson", "Daring", "Dusty",
	"Eager", "Fancy", "Fuzzy", "Gentle", "Golden", "Happy", "Icy", "Jolly",
	"Lucky", "Mighty", "Misty", "Nimble", "Quiet", "Rapid", "Rusty", "Shiny",
	"Silent", "Sly", "Sunny", "Swift", "Tiny", "Wild", "Witty", "Zesty",
}

var nouns = []string{
	"Badger", "Bear", "Cactus", "Comet", "Creeper", "Dragon", "Falcon", "Fox",
	"Golem", "Hawk", "Llama", "Lynx", "Miner", "Otter", "Panda", "Parrot",
	"Pickaxe", "Raven", "Salmon", "Spider", "Squid", "Tiger", "Turtle", "Wolf",
}
