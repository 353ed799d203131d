// Package prefs stores the guest's preferences record.
package prefs

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"cafeconnect/internal/model"
	"cafeconnect/internal/state"
)

// Load returns the saved preferences. A missing record yields the defaults.
// An unreadable record also yields the defaults, together with the error so
// the caller can report it.
func Load(st state.Store) (model.Preferences, error) {
	raw, ok, err := st.Get(state.KeyPreferences)
	if err != nil {
		return model.DefaultPreferences(), errors.Wrap(err, "read preferences")
	}
	if !ok {
		return model.DefaultPreferences(), nil
	}
	p := model.DefaultPreferences()
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.DefaultPreferences(), errors.Wrap(err, "decode preferences")
	}
	if p.DefaultTip.IsNegative() {
		return model.DefaultPreferences(), errors.Newf("negative default tip %s", p.DefaultTip)
	}
	return p, nil
}

func Save(st state.Store, p model.Preferences) error {
	if p.DefaultTip.IsNegative() {
		return errors.Newf("negative default tip %s", p.DefaultTip)
	}
	b, err := json.Marshal(&p)
	if err != nil {
		return errors.Wrap(err, "encode preferences")
	}
	return errors.Wrap(st.Set(state.KeyPreferences, string(b)), "write preferences")
}
