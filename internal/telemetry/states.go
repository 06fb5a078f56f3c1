package telemetry

import "droneresponse/internal/fsm"

// DroneState is the drone operational state.
type DroneState = fsm.State

const (
	DroneDocked     DroneState = "DOCKED"
	DronePreflight  DroneState = "PREFLIGHT"
	DroneLaunching  DroneState = "LAUNCHING"
	DroneEnroute    DroneState = "ENROUTE"
	DroneOnScene    DroneState = "ON_SCENE"
	DroneOrbit      DroneState = "ORBIT"
	DroneReturning  DroneState = "RETURNING"
	DroneLanding    DroneState = "LANDING"
	DronePostflight DroneState = "POSTFLIGHT"
	DroneCharging   DroneState = "CHARGING"
	DroneFault      DroneState = "FAULT"
)

// HubState is the hub operational state.
type HubState = fsm.State

const (
	HubReady          HubState = "READY"
	HubChargingDrone  HubState = "CHARGING_DRONE"
	HubDoorOpening    HubState = "DOOR_OPENING"
	HubDoorOpen       HubState = "DOOR_OPEN"
	HubLaunchingDrone HubState = "LAUNCHING_DRONE"
	HubDoorClosing    HubState = "DOOR_CLOSING"
	HubReceivingDrone HubState = "RECEIVING_DRONE"
	HubWeatherLock    HubState = "WEATHER_LOCK"
	HubSecurityLock   HubState = "SECURITY_LOCK"
	HubMaintenance    HubState = "MAINTENANCE"
	HubFault          HubState = "FAULT"
)

// Drone machine events.
const (
	EvBeginPreflight  fsm.Event = "begin_preflight"
	EvAbortPreflight  fsm.Event = "abort_preflight"
	EvLaunch          fsm.Event = "launch"
	EvTakeoffComplete fsm.Event = "takeoff_complete"
	EvArrive          fsm.Event = "arrive"
	EvStartOrbit      fsm.Event = "start_orbit"
	EvReturn          fsm.Event = "return"
	EvBeginLanding    fsm.Event = "begin_landing"
	EvTouchdown       fsm.Event = "touchdown"
	EvBeginCharging   fsm.Event = "begin_charging"
	EvChargeComplete  fsm.Event = "charge_complete"
	EvFaultDetected   fsm.Event = "fault_detected"
	EvFaultCleared    fsm.Event = "fault_cleared"
)

// Hub machine events.
const (
	EvOpenDoor        fsm.Event = "open_door"
	EvDoorOpened      fsm.Event = "door_opened"
	EvCloseDoor       fsm.Event = "close_door"
	EvLaunchDrone     fsm.Event = "launch_drone"
	EvDroneAway       fsm.Event = "drone_away"
	EvReceiveDrone    fsm.Event = "receive_drone"
	EvDroneDocked     fsm.Event = "drone_docked"
	EvDoorClosed      fsm.Event = "door_closed"
	EvHubChargeDone   fsm.Event = "hub_charge_done"
	EvWeatherLock     fsm.Event = "weather_lock"
	EvWeatherClear    fsm.Event = "weather_clear"
	EvSecurityLock    fsm.Event = "security_lock"
	EvSecurityClear   fsm.Event = "security_clear"
	EvStartMaint      fsm.Event = "start_maintenance"
	EvMaintDone       fsm.Event = "maintenance_done"
	EvHubFault        fsm.Event = "hub_fault"
	EvHubFaultCleared fsm.Event = "hub_fault_cleared"
)

// Guard tags used by the flight tables. Context keys are documented per guard.
const (
	GuardBatteryAboveMin = "battery_above_min" // "battery", "min_battery" float64
	GuardDroneDocked     = "drone_docked"      // "docked" bool
)

// FlightGuards returns the guard registry shared by the drone and hub tables.
func FlightGuards() fsm.Guards {
	return fsm.Guards{
		GuardBatteryAboveMin: func(ctx fsm.Context) bool {
			battery, ok := ctx["battery"].(float64)
			if !ok {
				return false
			}
			min, ok := ctx["min_battery"].(float64)
			if !ok {
				return false
			}
			return battery >= min
		},
		GuardDroneDocked: func(ctx fsm.Context) bool {
			docked, ok := ctx["docked"].(bool)
			return ok && docked
		},
	}
}

// DroneTransitions returns the drone transition table.
func DroneTransitions() []fsm.Transition {
	return []fsm.Transition{
		{From: DroneDocked, Event: EvBeginPreflight, To: DronePreflight},
		{From: DronePreflight, Event: EvAbortPreflight, To: DroneDocked},
		{From: DronePreflight, Event: EvLaunch, To: DroneLaunching, Guard: GuardBatteryAboveMin},
		{From: DroneLaunching, Event: EvTakeoffComplete, To: DroneEnroute},
		{From: DroneEnroute, Event: EvArrive, To: DroneOnScene},
		{From: DroneOnScene, Event: EvStartOrbit, To: DroneOrbit},
		{From: DroneEnroute, Event: EvReturn, To: DroneReturning},
		{From: DroneOnScene, Event: EvReturn, To: DroneReturning},
		{From: DroneOrbit, Event: EvReturn, To: DroneReturning},
		{From: DroneReturning, Event: EvBeginLanding, To: DroneLanding},
		{From: DroneLanding, Event: EvTouchdown, To: DronePostflight},
		{From: DronePostflight, Event: EvBeginCharging, To: DroneCharging},
		{From: DroneCharging, Event: EvChargeComplete, To: DroneDocked},
		{From: DroneDocked, Event: EvFaultDetected, To: DroneFault},
		{From: DronePreflight, Event: EvFaultDetected, To: DroneFault},
		{From: DroneLaunching, Event: EvFaultDetected, To: DroneFault},
		{From: DroneEnroute, Event: EvFaultDetected, To: DroneFault},
		{From: DroneOnScene, Event: EvFaultDetected, To: DroneFault},
		{From: DroneOrbit, Event: EvFaultDetected, To: DroneFault},
		{From: DroneReturning, Event: EvFaultDetected, To: DroneFault},
		{From: DroneLanding, Event: EvFaultDetected, To: DroneFault},
		{From: DroneFault, Event: EvFaultCleared, To: DroneDocked},
	}
}

// HubTransitions returns the hub transition table. The DOOR_CLOSING rows are
// ordered: with a drone docked the hub moves to charging, otherwise back to
// ready.
func HubTransitions() []fsm.Transition {
	return []fsm.Transition{
		{From: HubReady, Event: EvOpenDoor, To: HubDoorOpening},
		{From: HubDoorOpening, Event: EvDoorOpened, To: HubDoorOpen},
		{From: HubDoorOpen, Event: EvCloseDoor, To: HubDoorClosing},
		{From: HubDoorOpen, Event: EvLaunchDrone, To: HubLaunchingDrone},
		{From: HubLaunchingDrone, Event: EvDroneAway, To: HubDoorClosing},
		{From: HubDoorOpen, Event: EvReceiveDrone, To: HubReceivingDrone},
		{From: HubReceivingDrone, Event: EvDroneDocked, To: HubDoorClosing},
		{From: HubDoorClosing, Event: EvDoorClosed, To: HubChargingDrone, Guard: GuardDroneDocked},
		{From: HubDoorClosing, Event: EvDoorClosed, To: HubReady},
		{From: HubChargingDrone, Event: EvHubChargeDone, To: HubReady},
		{From: HubReady, Event: EvWeatherLock, To: HubWeatherLock},
		{From: HubWeatherLock, Event: EvWeatherClear, To: HubReady},
		{From: HubReady, Event: EvSecurityLock, To: HubSecurityLock},
		{From: HubSecurityLock, Event: EvSecurityClear, To: HubReady},
		{From: HubReady, Event: EvStartMaint, To: HubMaintenance},
		{From: HubMaintenance, Event: EvMaintDone, To: HubReady},
		{From: HubReady, Event: EvHubFault, To: HubFault},
		{From: HubChargingDrone, Event: EvHubFault, To: HubFault},
		{From: HubDoorOpening, Event: EvHubFault, To: HubFault},
		{From: HubDoorOpen, Event: EvHubFault, To: HubFault},
		{From: HubLaunchingDrone, Event: EvHubFault, To: HubFault},
		{From: HubDoorClosing, Event: EvHubFault, To: HubFault},
		{From: HubReceivingDrone, Event: EvHubFault, To: HubFault},
		{From: HubFault, Event: EvHubFaultCleared, To: HubMaintenance},
	}
}
