// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestSelectSets(t *testing.T) {
	all := []types.SearchSet{{Name: "agents"}, {Name: "llm"}, {Name: "quantum"}}

	got, err := selectSets(all, nil)
	require.NoError(t, err)
	assert.Equal(t, all, got)

	got, err = selectSets(all, []string{"quantum", "agents"})
	require.NoError(t, err)
	assert.Equal(t, []types.SearchSet{{Name: "agents"}, {Name: "quantum"}}, got)

	_, err = selectSets(all, []string{"robots"})
	assert.ErrorContains(t, err, "robots")
}
