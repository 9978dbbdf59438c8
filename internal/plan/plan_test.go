package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/perfwizard/internal/sources"
)

func TestBuild_LengthIsSourcesPlusThree(t *testing.T) {
	for n := 1; n <= 5; n++ {
		var srcs []sources.Source
		for i := 0; i < n; i++ {
			srcs = append(srcs, sources.NewStatic(string(rune('A'+i)), "collecting", ""))
		}
		p, err := Build(srcs, Template{})
		require.NoError(t, err)
		assert.Equal(t, n+3, p.Len())
	}
}

func TestBuild_SingleLighthouseSource(t *testing.T) {
	lh := sources.NewStatic("Lighthouse", "Gathering Lighthouse data for the site, this may take a moment.", "{}")
	p, err := Build([]sources.Source{lh}, Template{})
	require.NoError(t, err)

	want := []struct {
		title  string
		action Action
	}{
		{TitleIntroduction, ActionContinue},
		{"Lighthouse", ActionRunAction},
		{TitleSummarize, ActionPrompt},
		{TitleWrapUp, ActionComplete},
	}
	for i, w := range want {
		s, err := p.Step(i)
		require.NoError(t, err)
		assert.Equal(t, w.title, s.Title)
		assert.Equal(t, w.action, s.Action)
	}

	s, _ := p.Step(1)
	assert.Equal(t, lh.UserPrompt(), s.UserPrompt)
	assert.Same(t, lh, s.Source)

	_, err = p.Step(4)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = p.Step(-1)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil, Template{})
	assert.True(t, errors.Is(err, ErrNoSources))

	a := sources.NewStatic("A", "", "")
	_, err = Build([]sources.Source{a, a}, Template{})
	assert.Error(t, err)
}

func TestBuild_TemplateOverrides(t *testing.T) {
	p, err := Build([]sources.Source{sources.NewStatic("A", "", "")}, Template{Summarize: "Summarize briefly."})
	require.NoError(t, err)

	i, ok := p.Lookup(TitleSummarize)
	require.True(t, ok)
	s, _ := p.Step(i)
	assert.Equal(t, "Summarize briefly.", s.UserPrompt)

	intro, _ := p.Step(0)
	assert.Equal(t, DefaultTemplate.Introduction, intro.UserPrompt)

	_, ok = p.Lookup("missing")
	assert.False(t, ok)
}

func TestSteps_ReturnsCopy(t *testing.T) {
	p, err := Build([]sources.Source{sources.NewStatic("A", "", "")}, Template{})
	require.NoError(t, err)

	steps := p.Steps()
	steps[0].Title = "changed"
	s, _ := p.Step(0)
	assert.Equal(t, TitleIntroduction, s.Title)
}
