package api

import "fmt"

// Command is a control message sent by a WebSocket client, e.g.
// {"action":"seek","frame":120} or {"action":"key","key":"b"}.
type Command struct {
	Action string `json:"action"`

	Frame  *int    `json:"frame,omitempty"`
	Name   string  `json:"name,omitempty"`
	Key    string  `json:"key,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Height float64 `json:"height,omitempty"`
	Over   *bool   `json:"overControls,omitempty"`
	DTheta float64 `json:"dTheta,omitempty"`
	DPhi   float64 `json:"dPhi,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
}

// CommandResult is the reply to a Command.
type CommandResult struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// ApplyCommand runs cmd against v. It shares semantics with the HTTP
// control routes.
func ApplyCommand(v ViewerInterface, cmd Command) CommandResult {
	res := CommandResult{Action: cmd.Action, OK: true}
	fail := func(err error) CommandResult {
		res.OK = false
		res.Error = err.Error()
		return res
	}

	switch cmd.Action {
	case "toggle":
		if _, err := v.TogglePlay(); err != nil {
			return fail(err)
		}
	case "play":
		if err := v.Play(); err != nil {
			return fail(err)
		}
	case "pause":
		v.Pause()
	case "seek":
		if cmd.Frame == nil {
			return fail(fmt.Errorf("frame is required"))
		}
		res.OK = v.Seek(*cmd.Frame)
	case "preset":
		if err := v.SetCameraPreset(cmd.Name); err != nil {
			return fail(err)
		}
	case "follow":
		v.ToggleBallFollow()
	case "orbit":
		v.Orbit(cmd.DTheta, cmd.DPhi)
	case "zoom":
		if cmd.Scale <= 0 {
			return fail(fmt.Errorf("scale must be positive"))
		}
		v.Zoom(cmd.Scale)
	case "pan":
		v.Pan(cmd.DX, cmd.DY)
	case "key":
		res.OK = v.HandleKey(cmd.Key)
	case "pointer":
		if cmd.Over != nil {
			v.HoverControls(*cmd.Over)
		}
		if cmd.Height > 0 {
			v.Pointer(cmd.Y, cmd.Height)
		}
	default:
		return fail(fmt.Errorf("unknown action %q", cmd.Action))
	}
	return res
}
