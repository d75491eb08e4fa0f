package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobKindValid(t *testing.T) {
	assert.True(t, KindArchive.Valid())
	assert.True(t, KindThumbnail.Valid())
	assert.True(t, KindCheckURL.Valid())
	assert.False(t, JobKind("transcode").Valid())
	assert.False(t, JobKind("").Valid())
}

func TestJobTerminal(t *testing.T) {
	assert.True(t, Job{Status: StatusCompleted}.Terminal(3))
	assert.True(t, Job{Status: StatusFailed, Attempts: 3}.Terminal(3))
	assert.True(t, Job{Status: StatusFailed, Attempts: 5}.Terminal(3))
	assert.False(t, Job{Status: StatusFailed, Attempts: 2}.Terminal(3))
	assert.False(t, Job{Status: StatusPending, Attempts: 2}.Terminal(3))
	assert.False(t, Job{Status: StatusProcessing}.Terminal(3))
}
