package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrityChecker_Verify(t *testing.T) {
	refs := &fakeRefs{
		categories: map[string]bool{userA + "/" + catID: true},
		sources:    map[string]bool{userA + "/" + sourceID: true},
	}
	checker := NewIntegrityChecker(refs)

	tests := []struct {
		name    string
		user    string
		cat     string
		source  string
		want    References
		missing []string
	}{
		{"both valid", userA, catID, sourceID, References{true, true}, nil},
		{"unknown category", userA, unknownID, sourceID, References{false, true}, []string{"category"}},
		{"unknown source", userA, catID, unknownID, References{true, false}, []string{"payment_source"}},
		{"other user", userB, catID, sourceID, References{}, []string{"category", "payment_source"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.Verify(context.Background(), tt.user, tt.cat, tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.missing, got.Missing())
			assert.Equal(t, tt.missing == nil, got.OK())
		})
	}
}

func TestIntegrityChecker_LookupError(t *testing.T) {
	checker := NewIntegrityChecker(&fakeRefs{err: errors.New("db down")})

	_, err := checker.Verify(context.Background(), userA, catID, sourceID)
	assert.Error(t, err)
}
