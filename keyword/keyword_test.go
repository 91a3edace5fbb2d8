package keyword

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: []string{}},
		{name: "mixed case", in: "Return and Refund Policy", want: []string{"return", "and", "refund", "policy"}},
		{name: "runs of whitespace", in: "  30\tdays \n max ", want: []string{"30", "days", "max"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestFromContentDepth(t *testing.T) {
	content := map[string]any{
		"window": "30 Days",
		"steps":  []any{"Print label", 7, map[string]any{"ignored": "inside list"}},
		"rules":  []string{"Original packaging"},
		"nested": map[string]any{
			"note": "Store credit",
			"deeper": map[string]any{
				"fine": "print only",
			},
		},
		"count": 3,
	}

	shallow := FromContent(content, 0)
	assert.True(t, shallow.Has("days"))
	assert.True(t, shallow.Has("label"))
	assert.True(t, shallow.Has("packaging"))
	assert.False(t, shallow.Has("credit"), "depth 0 must not follow nested maps")
	assert.False(t, shallow.Has("inside"), "maps inside lists are ignored")

	oneLevel := FromContent(content, 1)
	assert.True(t, oneLevel.Has("credit"))
	assert.False(t, oneLevel.Has("fine"))

	all := FromContent(content, Unlimited)
	assert.True(t, all.Has("fine"))
	assert.True(t, all.Has("only"))
}

func TestFromPolicy(t *testing.T) {
	s := FromPolicy("Return and Refund Policy", map[string]any{"return_window": "30 days"})
	assert.Equal(t, NewSet("return", "and", "refund", "policy", "30", "days"), s)
}

func TestMentions(t *testing.T) {
	s := NewSet("electronics,", "refund")
	assert.True(t, s.Mentions("refund"))
	assert.True(t, s.Mentions("electronics"), "substring of a keyword matches")
	assert.False(t, s.Mentions("furniture"))
	assert.False(t, s.Mentions(""), "empty term never matches")
}

func TestJaccard(t *testing.T) {
	a := NewSet("return", "refund", "policy")
	b := NewSet("refund", "policy", "shipping", "fees")

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
		assert.InDelta(t, 2.0/5.0, Jaccard(a, b), 1e-12)
	})

	t.Run("self similarity", func(t *testing.T) {
		assert.Equal(t, 1.0, Jaccard(a, a))
	})

	t.Run("empty sets", func(t *testing.T) {
		assert.Equal(t, 0.0, Jaccard(a, NewSet()))
		assert.Equal(t, 0.0, Jaccard(NewSet(), NewSet()))
	})

	t.Run("exact threshold value", func(t *testing.T) {
		x, y := NewSet(), NewSet()
		for i := 0; i < 6; i++ {
			x.Add(fmt.Sprintf("w%d", i))
		}
		for i := 0; i < 3; i++ {
			y.Add(fmt.Sprintf("w%d", i))
		}
		for i := 0; i < 4; i++ {
			y.Add(fmt.Sprintf("v%d", i))
		}
		assert.Equal(t, 0.3, Jaccard(x, y))
	})
}
