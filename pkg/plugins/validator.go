package plugins

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/process"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
)

// Manifest stage reason codes
const (
	ReasonManifestUnavailable  = "manifest-unavailable"
	ReasonInvalidJSON          = "invalid-json"
	ReasonCategoryEmpty        = "category-empty"
	ReasonCategoryTooLong      = "category-too-long"
	ReasonCategoryInvalidChars = "category-invalid-chars"
	ReasonFieldMissing         = "manifest-field-missing"
	ReasonFieldInvalid         = "manifest-field-invalid"
	ReasonVersionUnavailable   = "version-unavailable"
	ReasonVersionMismatch      = "version-mismatch"
)

// Plugin names become install directory names, so they must be plain identifiers
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ManifestValidator checks a plugin's self-reported manifest
type ManifestValidator struct {
	policy   *policy.Policy
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// NewManifestValidator creates a manifest validator for the given policy
func NewManifestValidator(p *policy.Policy, logger logrus.FieldLogger) *ManifestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierRegex.MatchString(fl.Field().String())
	})

	return &ManifestValidator{
		policy:   p,
		validate: v,
		logger:   logger,
	}
}

// Check invokes --manifest and --version on the plugin and validates the result
func (v *ManifestValidator) Check(ctx context.Context, plugin Contract) verdict.Verdict {
	start := time.Now()

	raw, err := plugin.Manifest(ctx)
	if err != nil {
		v.logger.Warnf("Manifest invocation failed: %v", err)
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonManifestUnavailable,
			"plugin did not emit a manifest", err.Error()).WithDuration(time.Since(start))
	}

	manifest, result := v.Validate(raw)
	if result.Failed() {
		return result.WithDuration(time.Since(start))
	}

	version, err := plugin.Version(ctx)
	if err != nil {
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonVersionUnavailable,
			"plugin did not report a version", err.Error()).WithDuration(time.Since(start))
	}
	if version != manifest.Version {
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonVersionMismatch,
			fmt.Sprintf("--version reports %q but manifest declares %q", version, manifest.Version),
			"version="+version, "manifest.version="+manifest.Version).WithDuration(time.Since(start))
	}

	v.logger.Debugf("Manifest for %s v%s is valid", manifest.Name, manifest.Version)
	return result.WithDuration(time.Since(start))
}

// Validate parses raw manifest output and applies the field checks in fixed
// order. Only the first violation is reported.
func (v *ManifestValidator) Validate(raw []byte) (*Manifest, verdict.Verdict) {
	manifest, err := ParseManifest(raw)
	if err != nil {
		return nil, verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonInvalidJSON,
			"manifest is not valid JSON", err.Error(), process.Excerpt(raw, 256))
	}

	if failed, ok := v.checkCategory(manifest.Category); !ok {
		return manifest, failed
	}

	if err := v.validate.Struct(manifest); err != nil {
		return manifest, fieldFailure(err)
	}

	return manifest, verdict.Pass(verdict.StageManifest,
		fmt.Sprintf("manifest for %s v%s is valid", manifest.Name, manifest.Version),
		"name="+manifest.Name, "category="+manifest.Category, "version="+manifest.Version)
}

func (v *ManifestValidator) checkCategory(category string) (verdict.Verdict, bool) {
	if category == "" {
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonCategoryEmpty,
			"manifest category is empty"), false
	}

	if n := utf8.RuneCountInString(category); n > v.policy.CategoryMaxLength {
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonCategoryTooLong,
			fmt.Sprintf("manifest category is %d characters, limit is %d", n, v.policy.CategoryMaxLength),
			fmt.Sprintf("length=%d", n), "category="+category), false
	}

	if !v.policy.CategoryPattern.MatchString(category) {
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonCategoryInvalidChars,
			fmt.Sprintf("manifest category %q may only contain CJK ideographs, word characters, whitespace and hyphens", category),
			"category="+category), false
	}

	return verdict.Verdict{}, true
}

func fieldFailure(err error) verdict.Verdict {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonFieldInvalid,
			"manifest failed validation", err.Error())
	}

	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonFieldMissing,
			fmt.Sprintf("manifest field %q is required", fe.Field()), "field="+fe.Field())
	}
	return verdict.Fail(verdict.StageManifest, verdict.KindContractViolation, ReasonFieldInvalid,
		fmt.Sprintf("manifest field %q value %q is not a valid %s", fe.Field(), fe.Value(), fe.Tag()),
		"field="+fe.Field())
}
