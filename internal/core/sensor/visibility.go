package sensor

import "github.com/simoptic/simoptic/internal/core/scene"

// overrideDebugVisibility forces the state's debug node to the given
// visibility and returns a restore func. Callers must defer the restore
// so the original visibility comes back on every exit path.
func overrideDebugVisibility(st *scene.State, visible bool) (restore func()) {
	if st == nil || st.Debug == nil {
		return func() {}
	}
	prev := st.Debug.IsVisible()
	st.Debug.SetVisible(visible)
	return func() { st.Debug.SetVisible(prev) }
}
