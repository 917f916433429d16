package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("check out: %w", New(OutOfStock, "Video %d is out of stock", 7))

	assert.Equal(t, OutOfStock, KindOf(err))
	assert.True(t, Is(err, OutOfStock))
	assert.False(t, Is(err, NotFound))
	assert.Equal(t, "check out: Video 7 is out of stock", err.Error())
}

func TestUnclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.False(t, Is(nil, NotFound))
}
