package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCANMap = `direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment
# turret servos
tx,0x210,TURRET_CMD,20,4,turretLeft,0,16,little,true,0.0001,0,-1,1,0,pwr,left servo
tx,0x210,TURRET_CMD,20,4,turretRight,16,16,little,true,0.0001,0,-1,1,0,pwr,right servo
tx,0x220,LAUNCHER_CMD,20,8,shooterMotor_target_tps,0,32,little,true,0.1,0,-20000,20000,0,tps,velocity setpoint
tx,0x220,LAUNCHER_CMD,20,8,shooterMotor_power,32,16,little,true,0.0001,0,-1,1,0,pwr,open loop power
rx,0x320,LAUNCHER_STATE,20,4,shooterMotor_measured_tps,0,32,little,true,0.1,0,-20000,20000,0,tps,encoder velocity
`

func loadTestMap(t *testing.T) *CANMap {
	t.Helper()
	m, err := ParseCANMap(strings.NewReader(testCANMap))
	require.NoError(t, err)
	return m
}
