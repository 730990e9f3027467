package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/brightloop-io/modbus-toolkit/codec"
	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/transport"
)

// quantityBounds names the min/max quantity a function code's request may
// carry, keyed by function code. Replaces per-handler ad hoc bound checks.
type quantityBounds struct {
	min common.Quantity
	max common.Quantity
}

var requestQuantityBounds = map[common.FunctionCode]quantityBounds{
	common.FuncReadCoils:              {1, common.MaxReadBitCount},
	common.FuncReadDiscreteInputs:     {1, common.MaxReadBitCount},
	common.FuncReadHoldingRegisters:   {1, common.MaxReadRegisterCount},
	common.FuncReadInputRegisters:     {1, common.MaxReadRegisterCount},
	common.FuncWriteMultipleCoils:     {1, common.MaxWriteCoilCount},
	common.FuncWriteMultipleRegisters: {1, common.MaxWriteRegisterCount},
}

// dispatcher processes Modbus requests against a data store and produces
// responses or Modbus exception errors.
type dispatcher struct{}

// newDispatcher creates a request processor for the server.
func newDispatcher() *dispatcher {
	return &dispatcher{}
}

// exceptionFor converts a store/codec-level error kind into the ModbusError
// the server must send back, using common.ExceptionCodeFor's mapping table.
func exceptionFor(functionCode common.FunctionCode, err error) error {
	code, ok := common.ExceptionCodeFor(err)
	if !ok {
		// Frame-level fault reaching the dispatcher is a programming error:
		// the connection should have closed before a request was ever built.
		return fmt.Errorf("dispatch: unexpected frame-level error reached dispatcher: %w", err)
	}
	return common.NewModbusError(functionCode, code)
}

func checkQuantity(functionCode common.FunctionCode, quantity common.Quantity) error {
	bounds, ok := requestQuantityBounds[functionCode]
	if !ok {
		return nil
	}
	if quantity < bounds.min || quantity > bounds.max {
		return fmt.Errorf("%w: quantity %d outside [%d,%d]", common.ErrQuantityOutOfRange, quantity, bounds.min, bounds.max)
	}
	return nil
}

// HandleReadCoils processes a Read Coils (0x01) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.1.
func (d *dispatcher) HandleReadCoils(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, quantity, err := codec.DecodeReadRequest(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}
	if err := checkQuantity(functionCode, quantity); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	values, err := store.ReadCoils(ctx, address, quantity)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode, codec.EncodeBitsResponse(values)), nil
}

// HandleReadDiscreteInputs processes a Read Discrete Inputs (0x02) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.2.
func (d *dispatcher) HandleReadDiscreteInputs(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, quantity, err := codec.DecodeReadRequest(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}
	if err := checkQuantity(functionCode, quantity); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	values, err := store.ReadDiscreteInputs(ctx, address, quantity)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode, codec.EncodeBitsResponse(values)), nil
}

// HandleReadHoldingRegisters processes a Read Holding Registers (0x03) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.3.
func (d *dispatcher) HandleReadHoldingRegisters(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, quantity, err := codec.DecodeReadRequest(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}
	if err := checkQuantity(functionCode, quantity); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	values, err := store.ReadHoldingRegisters(ctx, address, quantity)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode, codec.EncodeRegistersResponse(values)), nil
}

// HandleReadInputRegisters processes a Read Input Registers (0x04) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.4.
func (d *dispatcher) HandleReadInputRegisters(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, quantity, err := codec.DecodeReadRequest(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}
	if err := checkQuantity(functionCode, quantity); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	values, err := store.ReadInputRegisters(ctx, address, quantity)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode, codec.EncodeRegistersResponse(values)), nil
}

// HandleWriteSingleCoil processes a Write Single Coil (0x05) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.5.
// "The normal response is an echo of the request, returned after the coil
// state has been written."
func (d *dispatcher) HandleWriteSingleCoil(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, value, err := codec.DecodeWriteSingleCoil(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	if err := store.WriteSingleCoil(ctx, address, value); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode, req.GetPDU().Data), nil
}

// HandleWriteSingleRegister processes a Write Single Register (0x06) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.6.
func (d *dispatcher) HandleWriteSingleRegister(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, value, err := codec.DecodeWriteSingleRegister(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	if err := store.WriteSingleRegister(ctx, address, value); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode, req.GetPDU().Data), nil
}

// HandleWriteMultipleCoils processes a Write Multiple Coils (0x0F) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.11.
func (d *dispatcher) HandleWriteMultipleCoils(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, values, err := codec.DecodeWriteMultipleCoilsRequest(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}
	if err := checkQuantity(functionCode, common.Quantity(len(values))); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	if err := store.WriteMultipleCoils(ctx, address, values); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode,
		codec.EncodeWriteMultipleResponse(address, common.Quantity(len(values)))), nil
}

// HandleWriteMultipleRegisters processes a Write Multiple Registers (0x10) request.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.12.
func (d *dispatcher) HandleWriteMultipleRegisters(ctx context.Context, req common.Request, store common.DataStore) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode
	address, values, err := codec.DecodeWriteMultipleRegistersRequest(req.GetPDU().Data)
	if err != nil {
		return nil, exceptionFor(functionCode, err)
	}
	if err := checkQuantity(functionCode, common.Quantity(len(values))); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	if err := store.WriteMultipleRegisters(ctx, address, values); err != nil {
		return nil, exceptionFor(functionCode, err)
	}

	return transport.NewResponse(req.GetTransactionID(), req.GetUnitID(), functionCode,
		codec.EncodeWriteMultipleResponse(address, common.Quantity(len(values)))), nil
}

// Dispatch routes a request to the handler for its function code; an
// unknown function code yields exception 0x01. It does not look at the unit
// id: connection.readLoop drops requests for an unserved unit id (via
// matchesUnitID) before they reach Dispatch, so no response is sent for them.
func (d *dispatcher) Dispatch(ctx context.Context, req common.Request, store common.DataStore, handlers map[common.FunctionCode]common.HandlerFunc) (common.Response, error) {
	functionCode := req.GetPDU().FunctionCode

	handler, ok := handlers[functionCode]
	if !ok {
		return nil, common.NewModbusError(functionCode, common.ExceptionFunctionCodeNotSupported)
	}

	return handler(ctx, req)
}

// matchesUnitID reports whether a request's unit id should be served by a
// server configured to answer for servedUnitID. Broadcast/unit-id-0
// semantics are out of scope (see SPEC_FULL.md Non-goals); unit id 0 is
// compared for equality like any other value, so it is served only when
// servedUnitID is itself 0 and silently dropped otherwise, matching the
// plain "does not match this server's unit id" mismatch rule.
func matchesUnitID(servedUnitID, requestUnitID common.UnitID) bool {
	return requestUnitID == servedUnitID
}

var errUnitIDDropped = errors.New("modbus: request unit id not served, dropping silently")
