// Package speaker guesses who is talking from names people introduce
// themselves with and crude per-segment feature vectors.
package speaker

import (
	"sync"
	"time"
)

// UnknownSpeaker is returned when no profile can be resolved
const UnknownSpeaker = "Falante desconhecido"

const (
	MaxSamples = 5

	InitialConfidence = 0.7
	ProfileStep       = 0.1
	ProfileCap        = 0.9
	MatchStep         = 0.05
	MatchCap          = 0.95

	// Profiles above this are trusted without scoring
	TrustedConfidence = 0.8
	MatchThreshold    = 0.6
	ContinuityWindow  = 1500 * time.Millisecond
)

// VoiceProfile is the accumulated evidence for one named speaker
type VoiceProfile struct {
	Name          string
	AudioFeatures [][]float64
	LastSpeakTime time.Time
	Confidence    float64
}

// Registry owns the voice profiles of one recording session
type Registry struct {
	mu       sync.Mutex
	profiles map[string]*VoiceProfile
	order    []string
	scorer   SimilarityScorer
	now      func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithScorer replaces the default elementwise scorer
func WithScorer(s SimilarityScorer) Option {
	return func(r *Registry) { r.scorer = s }
}

// WithClock sets the time source used for new profiles
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		profiles: make(map[string]*VoiceProfile),
		scorer:   ElementwiseScorer{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddProfile records features for a recognized name
func (r *Registry) AddProfile(name string, features []float64) {
	r.AddProfileAt(name, features, r.now())
}

// AddProfileAt is AddProfile with an explicit time for a new profile's
// LastSpeakTime. Transcripts processed after the fact use segment times.
func (r *Registry) AddProfileAt(name string, features []float64, at time.Time) {
	if name == "" || name == UnknownSpeaker {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.profiles[name]; ok {
		if len(p.AudioFeatures) < MaxSamples {
			p.AudioFeatures = append(p.AudioFeatures, clone(features))
		}
		if p.Confidence < ProfileCap {
			p.Confidence = min(p.Confidence+ProfileStep, ProfileCap)
		}
		return
	}

	r.profiles[name] = &VoiceProfile{
		Name:          name,
		AudioFeatures: [][]float64{clone(features)},
		LastSpeakTime: at,
		Confidence:    InitialConfidence,
	}
	r.order = append(r.order, name)
}

// IdentifyMostSimilarSpeaker resolves features heard at timestamp to a
// profile name, or UnknownSpeaker.
func (r *Registry) IdentifyMostSimilarSpeaker(features []float64, timestamp time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.profiles) == 0 {
		return UnknownSpeaker
	}

	if len(r.profiles) == 1 {
		p := r.profiles[r.order[0]]
		if p.Confidence > TrustedConfidence {
			p.LastSpeakTime = timestamp
			return p.Name
		}
	}

	// Same person still talking
	last := r.lastSpeaker()
	if timestamp.Sub(last.LastSpeakTime) < ContinuityWindow && last.Confidence > TrustedConfidence {
		last.LastSpeakTime = timestamp
		return last.Name
	}

	var best *VoiceProfile
	bestScore := 0.0
	for _, name := range r.order {
		p := r.profiles[name]
		score := r.average(p, features) * p.Confidence
		if best == nil || score > bestScore {
			best, bestScore = p, score
		}
	}

	if bestScore > MatchThreshold {
		best.LastSpeakTime = timestamp
		best.Confidence = min(best.Confidence+MatchStep, MatchCap)
		return best.Name
	}
	return UnknownSpeaker
}

func (r *Registry) lastSpeaker() *VoiceProfile {
	var last *VoiceProfile
	for _, name := range r.order {
		p := r.profiles[name]
		if last == nil || p.LastSpeakTime.After(last.LastSpeakTime) {
			last = p
		}
	}
	return last
}

func (r *Registry) average(p *VoiceProfile, features []float64) float64 {
	if len(p.AudioFeatures) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range p.AudioFeatures {
		sum += r.scorer.Score(sample, features)
	}
	return sum / float64(len(p.AudioFeatures))
}

// Clear discards every profile
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = make(map[string]*VoiceProfile)
	r.order = nil
}

// Profiles returns a copy of the profiles in creation order
func (r *Registry) Profiles() []VoiceProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]VoiceProfile, 0, len(r.order))
	for _, name := range r.order {
		p := r.profiles[name]
		cp := *p
		cp.AudioFeatures = make([][]float64, len(p.AudioFeatures))
		for i, s := range p.AudioFeatures {
			cp.AudioFeatures[i] = clone(s)
		}
		out = append(out, cp)
	}
	return out
}

// Profile returns a copy of one profile
func (r *Registry) Profile(name string) (VoiceProfile, bool) {
	for _, p := range r.Profiles() {
		if p.Name == name {
			return p, true
		}
	}
	return VoiceProfile{}, false
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
