package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListingOutdated(t *testing.T) {
	fresh := Listing{FetchedAt: time.Now()}
	assert.False(t, fresh.Outdated(time.Minute))

	stale := Listing{FetchedAt: time.Now().Add(-time.Hour)}
	assert.True(t, stale.Outdated(time.Minute))

	assert.False(t, stale.Outdated(0), "ttl<=0 disables aging")
	assert.False(t, Listing{}.Outdated(time.Minute), "zero FetchedAt never ages out")
}

func TestListingHasUnsure(t *testing.T) {
	assert.False(t, Listing{Entries: []Entry{{Name: "a"}}}.HasUnsure())
	assert.True(t, Listing{Entries: []Entry{{Name: "a", Unsure: UnsureSize}}}.HasUnsure())
}
