package trust

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "vigil/pkg/domain-errors"
)

// Default policy identifiers. The baseline set is installed by NewEngine and
// must evaluate in strictly descending priority: the deny-on-low-trust
// safety net runs before any allow rule.
const (
	policyDenyLowTrust  = "deny-low-trust"
	policyAllowAdmin    = "allow-admin-high-trust"
	policyAllowVerified = "allow-verified"
)

// DefaultPolicies returns the baseline policy set.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			ID:       policyDenyLowTrust,
			Name:     "Deny low trust",
			Resource: "*",
			Action:   "*",
			Effect:   EffectDeny,
			Priority: 300,
			Conditions: []Condition{
				{Type: ConditionTrustScore, Operator: OpLessThan, Value: 0.3},
			},
		},
		{
			ID:       policyAllowAdmin,
			Name:     "Allow admin with high trust",
			Resource: "/admin/*",
			Action:   "*",
			Effect:   EffectAllow,
			Priority: 200,
			Conditions: []Condition{
				{Type: ConditionTrustScore, Operator: OpGreaterThan, Value: 0.9},
				{Type: ConditionMFA, Operator: OpEqual, Value: true},
				{Type: ConditionDevice, Operator: OpEqual, Value: true},
			},
		},
		{
			ID:       policyAllowVerified,
			Name:     "Allow verified",
			Resource: "*",
			Action:   "*",
			Effect:   EffectAllow,
			Priority: 100,
			Conditions: []Condition{
				{Type: ConditionTrustScore, Operator: OpGreaterThan, Value: 0.8},
			},
		},
	}
}

// policySet is the read-mostly policy store. Mutation happens only through
// administrative APIs and adaptive tightening.
type policySet struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func newPolicySet(initial []Policy) *policySet {
	s := &policySet{policies: make(map[string]Policy, len(initial))}
	for _, p := range initial {
		s.policies[p.ID] = p
	}
	return s
}

func (s *policySet) add(p Policy) Policy {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
	return p
}

func (s *policySet) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.policies[id]
	delete(s.policies, id)
	return ok
}

func (s *policySet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.policies)
}

func (s *policySet) all() []Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	return out
}

// pruneExpired drops adaptive policies whose TTL has passed.
func (s *policySet) pruneExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.policies {
		if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
			delete(s.policies, id)
		}
	}
}

// applicable selects live policies matching resource and action, sorted by
// descending priority. Equal priorities tie-break by ID so evaluation order
// is deterministic.
func (s *policySet) applicable(resource, action string, now time.Time) []Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Policy
	for _, p := range s.policies {
		if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
			continue
		}
		if matchesResource(p.Resource, resource) && matchesAction(p.Action, action) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// matchesResource supports "*", "prefix/*", and exact patterns.
func matchesResource(pattern, resource string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(resource, prefix)
	}
	return pattern == resource
}

func matchesAction(pattern, action string) bool {
	return pattern == "*" || pattern == action
}

// evalInput carries the signals a condition can examine.
type evalInput struct {
	sctx        SecurityContext
	score       TrustScore
	mfaEnabled  bool
	deviceKnown bool
}

// conditionResult reports whether a condition held and, if not, what the
// caller would need to change.
type conditionResult struct {
	met            bool
	requiredAction string
}

// evaluateCondition checks one conjunct. Malformed conditions return a
// policy evaluation error; the caller treats the policy as unmet.
func evaluateCondition(c Condition, in evalInput) (conditionResult, error) {
	switch c.Type {
	case ConditionTrustScore:
		threshold, ok := asFloat(c.Value)
		if !ok {
			return conditionResult{}, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("trust_score condition requires a numeric value, got %T", c.Value))
		}
		switch c.Operator {
		case OpGreaterThan:
			if in.score.Overall > threshold {
				return conditionResult{met: true}, nil
			}
			return conditionResult{requiredAction: fmt.Sprintf(
				"Improve trust score to above %.2f (current %.2f)", threshold, in.score.Overall)}, nil
		case OpLessThan:
			return conditionResult{met: in.score.Overall < threshold}, nil
		case OpEqual:
			return conditionResult{met: in.score.Overall == threshold}, nil
		default:
			return conditionResult{}, operatorError(c)
		}

	case ConditionMFA:
		want, ok := c.Value.(bool)
		if !ok || c.Operator != OpEqual {
			return conditionResult{}, operatorError(c)
		}
		if in.mfaEnabled == want {
			return conditionResult{met: true}, nil
		}
		if want {
			return conditionResult{requiredAction: "Enable multi-factor authentication"}, nil
		}
		return conditionResult{}, nil

	case ConditionDevice:
		want, ok := c.Value.(bool)
		if !ok || c.Operator != OpEqual {
			return conditionResult{}, operatorError(c)
		}
		if in.deviceKnown == want {
			return conditionResult{met: true}, nil
		}
		if want {
			return conditionResult{requiredAction: "Register this device"}, nil
		}
		return conditionResult{}, nil

	case ConditionLocation:
		countries, ok := asStrings(c.Value)
		if !ok {
			return conditionResult{}, operatorError(c)
		}
		country := ""
		if in.sctx.Location != nil {
			country = in.sctx.Location.Country
		}
		contains := false
		for _, cc := range countries {
			if cc == country {
				contains = true
				break
			}
		}
		switch c.Operator {
		case OpIn:
			if contains {
				return conditionResult{met: true}, nil
			}
			return conditionResult{requiredAction: "Access from an approved location"}, nil
		case OpNotIn:
			return conditionResult{met: !contains}, nil
		default:
			return conditionResult{}, operatorError(c)
		}

	case ConditionTime:
		hours, ok := asInts(c.Value)
		if !ok {
			return conditionResult{}, operatorError(c)
		}
		hour := in.sctx.Timestamp.Hour()
		contains := false
		for _, h := range hours {
			if h == hour {
				contains = true
				break
			}
		}
		switch c.Operator {
		case OpIn:
			if contains {
				return conditionResult{met: true}, nil
			}
			return conditionResult{requiredAction: "Access during approved hours"}, nil
		case OpNotIn:
			return conditionResult{met: !contains}, nil
		default:
			return conditionResult{}, operatorError(c)
		}

	default:
		return conditionResult{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("unknown condition type %q", c.Type))
	}
}

func operatorError(c Condition) error {
	return dErrors.New(dErrors.CodeInvalidInput,
		fmt.Sprintf("operator %q is not valid for condition type %q", c.Operator, c.Type))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func asStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func asInts(v any) ([]int, bool) {
	switch list := v.(type) {
	case []int:
		return list, true
	case []any:
		out := make([]int, 0, len(list))
		for _, item := range list {
			switch n := item.(type) {
			case int:
				out = append(out, n)
			case float64:
				out = append(out, int(n))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}
