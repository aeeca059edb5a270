package scene

// State is what the host simulation hands to every sensor on a tick.
//
// Scene is the directly renderable scene. When FullScene is set as well,
// sensors render FullScene instead; Scene then only carries per-tick
// annotations. Debug is an optional visualization overlay node whose
// visibility sensors may override for the duration of a capture.
type State struct {
	Scene     *Scene
	FullScene *Scene
	Debug     *Node
}

// Renderable resolves which scene a sensor should draw: the nested full
// scene when present, otherwise the tick scene itself.
func (st *State) Renderable() *Scene {
	if st.FullScene != nil {
		return st.FullScene
	}
	return st.Scene
}
