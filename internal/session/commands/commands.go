// Package commands implements the per-simulator command mapping tables of
// spec.md §4.8: a published Command is translated to zero or more protocol
// frames via a lookup table, with an UNSUPPORTED_COMMAND result for
// actions the simulator has no mapping for. Supplements spec.md's "event
// mapping" note with the concrete tables spec.md §6 enumerates by name
// (SimConnect client events, BeamNG control-input fields).
package commands

import "encoding/json"

// Command is a caller-issued action, spec.md §4.8.
type Command struct {
	Action     string
	Parameters map[string]any
}

// ResultCode names why a command did or didn't succeed.
type ResultCode string

const (
	CodeOK                  ResultCode = "ok"
	CodeUnsupportedCommand  ResultCode = "UNSUPPORTED_COMMAND"
)

// Result is the outcome of translating and sending a Command.
type Result struct {
	Success bool
	Code    ResultCode
}

// Simulator names one of the supported simulator command tables.
type Simulator string

const (
	SimulatorMSFS   Simulator = "msfs"
	SimulatorBeamNG Simulator = "beamng"
	SimulatorXPlane Simulator = "xplane"
)

// Translator maps a Command to zero or more wire-ready frame payloads
// (pre-codec-framing) for one simulator.
type Translator func(Command) ([][]byte, Result)

// tables holds one Translator per simulator, keyed by Command.Action.
var tables = map[Simulator]map[string]func(Command) [][]byte{
	SimulatorMSFS: {
		"throttle_set":  msfsClientEvent("THROTTLE_SET"),
		"gear_toggle":   msfsClientEvent("GEAR_TOGGLE"),
		"brakes_set":    msfsClientEvent("BRAKES_SET"),
		"flaps_set":     msfsClientEvent("FLAPS_SET"),
		"autopilot_set": msfsClientEvent("AP_MASTER"),
	},
	SimulatorBeamNG: {
		"control_input": beamngControlInput,
		"vehicle_reset": beamngVehicleReset,
		"lua_execute":   beamngLuaExecute,
	},
	SimulatorXPlane: {
		"control_input": xplaneControlInput,
	},
}

// Translate looks up sim's table for cmd.Action; returns
// UNSUPPORTED_COMMAND if no entry exists, spec.md §4.8.
func Translate(sim Simulator, cmd Command) ([][]byte, Result) {
	table, ok := tables[sim]
	if !ok {
		return nil, Result{Success: false, Code: CodeUnsupportedCommand}
	}
	fn, ok := table[cmd.Action]
	if !ok {
		return nil, Result{Success: false, Code: CodeUnsupportedCommand}
	}
	return fn(cmd), Result{Success: true, Code: CodeOK}
}

// msfsClientEvent builds a translator emitting one
// MAP_CLIENT_EVENT_TO_SIM_EVENT-style JSON envelope per invocation; the
// SimConnect transport is responsible for the binary header framing, this
// layer only produces the event name + parameter payload, spec.md §6.
func msfsClientEvent(eventName string) func(Command) [][]byte {
	return func(cmd Command) [][]byte {
		payload, _ := json.Marshal(map[string]any{
			"event":      eventName,
			"parameters": cmd.Parameters,
		})
		return [][]byte{payload}
	}
}

// beamngControlInput maps to BeamNG's ControlInput message, spec.md §6:
// {throttle,brake,steering,clutch,gear,parkingbrake}.
func beamngControlInput(cmd Command) [][]byte {
	payload, _ := json.Marshal(map[string]any{
		"type": "ControlInput",
		"data": cmd.Parameters,
	})
	return [][]byte{payload}
}

func beamngVehicleReset(cmd Command) [][]byte {
	payload, _ := json.Marshal(map[string]any{"type": "VehicleReset", "data": cmd.Parameters})
	return [][]byte{payload}
}

func beamngLuaExecute(cmd Command) [][]byte {
	payload, _ := json.Marshal(map[string]any{"type": "LuaExecute", "data": cmd.Parameters})
	return [][]byte{payload}
}

// xplaneControlInput maps to an X-Plane data-ref write command.
func xplaneControlInput(cmd Command) [][]byte {
	payload, _ := json.Marshal(map[string]any{"dataref": "sim/flightmodel/controls", "value": cmd.Parameters})
	return [][]byte{payload}
}
