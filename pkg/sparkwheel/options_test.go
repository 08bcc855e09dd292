package sparkwheel

import (
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultSettingsReadsEnvTags(t *testing.T) {
	Convey("Given SPARKWHEEL_STRICT_KEYS is unset and SPARKWHEEL_ALLOW_MISSING_REFERENCE is set", t, func() {
		os.Unsetenv("SPARKWHEEL_STRICT_KEYS")
		os.Setenv("SPARKWHEEL_ALLOW_MISSING_REFERENCE", "true")
		defer os.Unsetenv("SPARKWHEEL_ALLOW_MISSING_REFERENCE")

		Convey("DefaultSettings falls back to each field's default tag when unset, and reads the env tag when set", func() {
			s := DefaultSettings()
			So(s.StrictKeys, ShouldBeFalse)
			So(s.AllowMissingReference, ShouldBeTrue)
		})
	})
}
