package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Mock is a deterministic Critic and Generator. Its critique is derived from
// the log alone and its generator replays a fixed list of candidates.
type Mock struct {
	mu         sync.Mutex
	candidates []string
	next       int
	critiques  int
}

// NewMock returns a Mock that proposes candidates in order, then keeps
// returning the source it is given.
func NewMock(candidates ...string) *Mock {
	return &Mock{candidates: candidates}
}

// Critique summarises why the logged battle went the way it did.
func (m *Mock) Critique(ctx context.Context, log, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.critiques++
	m.mu.Unlock()

	var (
		result    string
		ignored   int
		wasted    int
		resisted  int
		effective int
		frozen    int
	)
	telegraphed := false
	for _, line := range strings.Split(log, "\n") {
		switch {
		case strings.HasPrefix(line, "=== RESULT: "):
			result = strings.TrimSuffix(strings.TrimPrefix(line, "=== RESULT: "), " ===")
		case strings.HasPrefix(line, "[!] ENEMY TELEGRAPHS: "):
			telegraphed = true
		case strings.HasPrefix(line, "Action: "):
			if telegraphed && !strings.HasPrefix(line, "Action: Defend") {
				ignored++
			}
			telegraphed = false
			if strings.Contains(line, "[WASTED]") {
				wasted++
			}
			if strings.Contains(line, "[FROZEN") {
				frozen++
			}
			if strings.Contains(line, "[Not effective]") {
				resisted++
			}
			if strings.Contains(line, "[SUPER EFFECTIVE!]") {
				effective++
			}
		}
	}

	var fb []string
	if result != "" {
		fb = append(fb, "Result: "+result+".")
	}
	if ignored > 0 {
		fb = append(fb, fmt.Sprintf("Ignored %d telegraphed enemy action(s); add Defend() under EnemyIsTelegraphing.", ignored))
	}
	if wasted > 0 {
		fb = append(fb, fmt.Sprintf("Wasted %d turn(s) on unaffordable or cooling-down actions; guard them with CanUse or HasMP.", wasted))
	}
	if resisted > 0 {
		fb = append(fb, fmt.Sprintf("%d spell(s) hit a resisted element; check EnemyResists before casting.", resisted))
	}
	if effective == 0 {
		fb = append(fb, "No attack exploited a weakness; branch on EnemyWeakTo.")
	}
	if frozen > 0 {
		fb = append(fb, fmt.Sprintf("Lost %d turn(s) to Freeze.", frozen))
	}
	if len(fb) == 0 {
		fb = append(fb, "No obvious mistakes.")
	}
	return strings.Join(fb, "\n"), nil
}

// Generate returns the next scripted candidate, or src once they run out.
func (m *Mock) Generate(ctx context.Context, src, feedback string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.candidates) {
		return src, nil
	}
	c := m.candidates[m.next]
	m.next++
	return c, nil
}

// Critiques returns how many critiques were requested.
func (m *Mock) Critiques() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.critiques
}
