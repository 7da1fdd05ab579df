package gate

import (
	"regexp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintKnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		attrs DeviceAttrs
		want  string
	}{
		{
			name: "typical phone",
			attrs: DeviceAttrs{
				UserAgent: "Mozilla/5.0",
				Language:  "en-US",
				Cores:     8,
				Screen:    "390x844",
				Platform:  "iPhone",
			},
			want: "device_j1zyrr",
		},
		{
			name:  "all attributes empty",
			attrs: DeviceAttrs{},
			want:  "device_0",
		},
		{
			name: "empty attributes are filtered before joining",
			attrs: DeviceAttrs{
				UserAgent: "abc",
				Cores:     4,
			},
			want: "device_1j4qoq",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fingerprint(tt.attrs))
		})
	}
}

var fingerprintPattern = regexp.MustCompile(`^device_[0-9a-z]+$`)

func TestFingerprintProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genAttrs := gopter.CombineGens(
		gen.AnyString(),
		gen.AnyString(),
		gen.IntRange(0, 64),
		gen.RegexMatch(`[0-9]{3,4}x[0-9]{3,4}`),
		gen.AlphaString(),
	).Map(func(values []interface{}) DeviceAttrs {
		return DeviceAttrs{
			UserAgent: values[0].(string),
			Language:  values[1].(string),
			Cores:     values[2].(int),
			Screen:    values[3].(string),
			Platform:  values[4].(string),
		}
	})

	properties.Property("deterministic", prop.ForAll(
		func(attrs DeviceAttrs) bool {
			return Fingerprint(attrs) == Fingerprint(attrs)
		},
		genAttrs,
	))

	properties.Property("well formed", prop.ForAll(
		func(attrs DeviceAttrs) bool {
			return fingerprintPattern.MatchString(Fingerprint(attrs))
		},
		genAttrs,
	))

	properties.Property("cores value changes the id", prop.ForAll(
		func(attrs DeviceAttrs) bool {
			if attrs.Cores <= 0 {
				return true
			}
			bumped := attrs
			bumped.Cores = attrs.Cores + 1
			return Fingerprint(attrs) != Fingerprint(bumped)
		},
		genAttrs,
	))

	properties.TestingRun(t)
}
