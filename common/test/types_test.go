package test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightloop-io/modbus-toolkit/common"
)

func TestTypeAliases(t *testing.T) {
	var address common.Address = 100
	assert.Equal(t, uint16(100), uint16(address))

	var quantity common.Quantity = 10
	assert.Equal(t, uint16(10), uint16(quantity))

	var coilValue common.CoilValue = true
	assert.True(t, bool(coilValue))

	var discreteInputValue common.DiscreteInputValue = false
	assert.False(t, bool(discreteInputValue))

	var registerValue common.RegisterValue = 12345
	assert.Equal(t, uint16(12345), uint16(registerValue))

	var inputRegisterValue common.InputRegisterValue = 54321
	assert.Equal(t, uint16(54321), uint16(inputRegisterValue))
}

func TestAddressArithmetic(t *testing.T) {
	var baseAddress common.Address = 100
	var offset common.Address = 50

	assert.Equal(t, common.Address(150), baseAddress+offset)
	assert.Equal(t, common.Address(125), baseAddress+25)
	assert.Equal(t, common.Address(110), baseAddress+common.Address(10))
}

func TestQuantityArithmetic(t *testing.T) {
	var baseQuantity common.Quantity = 100
	var offset common.Quantity = 50

	assert.Equal(t, common.Quantity(150), baseQuantity+offset)
	assert.Equal(t, common.Quantity(50), baseQuantity-offset)
	assert.Greater(t, baseQuantity, offset)
}

func TestFunctionCodeString(t *testing.T) {
	testCases := []struct {
		code     common.FunctionCode
		expected string
	}{
		{common.FuncReadCoils, "ReadCoils"},
		{common.FuncReadDiscreteInputs, "ReadDiscreteInputs"},
		{common.FuncReadHoldingRegisters, "ReadHoldingRegisters"},
		{common.FuncReadInputRegisters, "ReadInputRegisters"},
		{common.FuncWriteSingleCoil, "WriteSingleCoil"},
		{common.FuncWriteSingleRegister, "WriteSingleRegister"},
		{common.FuncWriteMultipleCoils, "WriteMultipleCoils"},
		{common.FuncWriteMultipleRegisters, "WriteMultipleRegisters"},
		{common.FunctionCode(0x7F), "Unknown(0x7F)"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.code.String())
	}
}

func TestFunctionCodeString_Exception(t *testing.T) {
	exceptionCode := common.FunctionCode(byte(common.FuncReadCoils) | common.ExceptionBit)
	assert.Equal(t, "Exception(ReadCoils)", exceptionCode.String())
}

func TestExceptionCodeString(t *testing.T) {
	testCases := []struct {
		code     common.ExceptionCode
		expected string
	}{
		{common.ExceptionFunctionCodeNotSupported, "FunctionCodeNotSupported"},
		{common.ExceptionDataAddressNotAvailable, "DataAddressNotAvailable"},
		{common.ExceptionInvalidDataValue, "InvalidDataValue"},
		{common.ExceptionServerDeviceFailure, "ServerDeviceFailure"},
		{0xFF, "Unknown(0xFF)"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.code.String())
	}
}

func TestExceptionFunctions(t *testing.T) {
	normalCode := byte(common.FuncReadCoils)
	assert.False(t, common.IsException(normalCode))

	exceptionCode := byte(common.FuncReadCoils) | common.ExceptionBit
	assert.True(t, common.IsException(exceptionCode))
	assert.Equal(t, normalCode, common.GetOriginalFunctionCode(exceptionCode))

	normalFuncCode := common.FuncReadCoils
	exceptionFuncCode := common.FunctionCode(exceptionCode)

	assert.False(t, common.IsFunctionException(normalFuncCode))
	assert.True(t, common.IsFunctionException(exceptionFuncCode))
	assert.Equal(t, normalFuncCode, common.GetOriginalFunction(exceptionFuncCode))
}
