package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubGeo struct {
	loc Location
	err error
}

func (s stubGeo) Lookup(ctx context.Context, ip string) (Location, error) {
	return s.loc, s.err
}

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"

func TestEnricher_Enrich(t *testing.T) {
	e := NewEnricher(stubGeo{loc: Location{Country: "Germany", City: "Berlin"}}, zap.NewNop())

	v := e.Enrich(context.Background(), "5.6.7.8", iphoneUA)

	assert.Equal(t, Visitor{
		Country: "Germany",
		City:    "Berlin",
		Device:  DeviceMobile,
		Browser: "Safari",
		OS:      "iOS",
	}, v)
}

func TestEnricher_GeoFailureLeavesLocationEmpty(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"lookup error", errors.New("timeout")},
		{"skipped address", ErrSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnricher(stubGeo{err: tt.err}, zap.NewNop())

			v := e.Enrich(context.Background(), "5.6.7.8", iphoneUA)

			assert.Empty(t, v.Country)
			assert.Empty(t, v.City)
			assert.Equal(t, DeviceMobile, v.Device)
		})
	}
}

func TestEnricher_WithoutGeo(t *testing.T) {
	v := NewEnricher(nil, zap.NewNop()).Enrich(context.Background(), "5.6.7.8", "")

	assert.Equal(t, Visitor{}, v)
}
