package generator

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/FocuswithJustin/kbdgen/core/bundle"
	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/layerview"
	"github.com/FocuswithJustin/kbdgen/core/locale"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
)

// SanityChecker decides whether a bundle can be generated for a target.
type SanityChecker interface {
	Check(ctx context.Context, b *bundle.Bundle, target string) error
}

// versionPattern accepts one to four dot-separated integers.
var versionPattern = regexp.MustCompile(`^\d+(\.\d+){0,3}$`)

// TargetChecker is the default SanityChecker. It reports every problem it
// finds, joined, as *errors.ValidationError values.
type TargetChecker struct{}

// Check implements SanityChecker.
func (TargetChecker) Check(ctx context.Context, b *bundle.Bundle, target string) error {
	logger := logging.LoggerFromContext(ctx)
	settings := b.TargetSettings(target)

	var problems []error
	problem := func(field, value, format string, args ...any) {
		problems = append(problems, &errors.ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if len(b.Project.Locales) == 0 {
		problem("project.locales", "", "at least one locale with a name and description is required")
	} else {
		found := false
		for _, pl := range b.Project.Locales {
			if pl.Locale == settings.DefaultLocale {
				found = true
			}
			if pl.Name == "" {
				problem("project.locales."+pl.Locale, "", "name is empty")
			}
		}
		if !found {
			problem("project.locales", settings.DefaultLocale, "default locale has no name or description")
		}
	}

	if !versionPattern.MatchString(settings.Version) {
		problem("targets."+target+".version", settings.Version, "must be one to four dot-separated integers")
	}

	layouts := b.Supported(target)
	if len(layouts) == 0 {
		problem("layouts", "", "no layout declares the %s target", target)
	}

	keys := make(map[string]string, len(layouts))
	for _, l := range layouts {
		field := "layouts/" + l.Locale

		if len(l.DisplayNames) == 0 {
			problem(field+"/displayNames", "", "no display names")
		}
		if _, err := locale.Parse(l.Locale); err != nil {
			problem(field, l.Locale, "locale is not a valid tag")
		}

		key := locale.LookupKey(l.Locale)
		if other, ok := keys[key]; ok {
			problem(field, key, "message key collides with layout %s", other)
		} else {
			keys[key] = l.Locale
		}

		view, err := layerview.New(l, target)
		if err != nil {
			problem(field+"/modes/"+target, "", "%v", err)
			continue
		}
		if _, ok := l.Modes[target]["default"]; !ok {
			problem(field+"/modes/"+target, "", "no default layer")
		}
		if ignored := view.Ignored(); len(ignored) > 0 {
			logger.Warn("layers_ignored", "locale", l.Locale, "target", target, "layers", ignored)
		}

		dead := l.TargetDeadKeys(target)
		layers := make([]string, 0, len(dead))
		for layer := range dead {
			layers = append(layers, layer)
		}
		sort.Strings(layers)
		for _, layer := range layers {
			for _, ch := range dead[layer] {
				if _, ok := l.Transforms[ch]; !ok {
					problem(field+"/deadKeys/"+target+"/"+layer, ch, "dead key has no transforms")
				}
			}
		}
	}

	for _, p := range problems {
		logger.Debug("sanity_problem", "problem", p.Error())
	}
	return errors.Join(problems...)
}
