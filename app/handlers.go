package app

import (
	"fmt"

	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/service"
	"github.com/bacgo/bacnet/tsm"
)

// rawStore is the property-storage surface every concrete object type
// exposes by embedding object.Base; the list-element handlers mutate list
// properties through it.
type rawStore interface {
	GetRaw(object.PropertyID) (bactypes.Value, bool)
	SetRaw(object.PropertyID, bactypes.Value)
}

func (a *Application) handleReadPropertyMultiple(data []byte) tsm.Response {
	req, err := service.DecodeReadPropertyMultipleRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	var ack service.ReadPropertyMultipleACK
	for _, spec := range req.Specs {
		res := service.ReadAccessResult{ObjectID: spec.ObjectID}
		for _, ref := range spec.Properties {
			r := service.ReadResult{Property: ref.Property, ArrayIndex: ref.ArrayIndex}
			value, err := a.db.Read(spec.ObjectID, ref.Property, ref.ArrayIndex)
			if err != nil {
				r.Err = asProtocolError(err)
			} else {
				r.Value = value
			}
			res.Results = append(res.Results, r)
		}
		ack.Results = append(ack.Results, res)
	}
	return tsm.Response{Kind: tsm.RespComplexAck, ServiceChoice: service.ServiceReadPropertyMultiple, Data: ack.Encode()}
}

func (a *Application) handleWritePropertyMultiple(data []byte) tsm.Response {
	req, err := service.DecodeWritePropertyMultipleRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	for _, spec := range req.Specs {
		for _, pv := range spec.Values {
			if err := a.db.Write(spec.ObjectID, pv.Property, pv.Value, pv.Priority, pv.ArrayIndex); err != nil {
				return errorResponse(service.ServiceWritePropertyMultiple, err)
			}
		}
	}
	return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: service.ServiceWritePropertyMultiple}
}

func (a *Application) handleReadRange(data []byte) tsm.Response {
	req, err := service.DecodeReadRangeRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	items, total, err := a.rangeItems(req)
	if err != nil {
		return errorResponse(service.ServiceReadRange, err)
	}

	start, end := rangeWindow(req, total)
	var itemData []byte
	for _, item := range items[start:end] {
		itemData = append(itemData, item...)
	}
	ack := service.ReadRangeACK{
		ObjectID:   req.ObjectID,
		Property:   req.Property,
		ArrayIndex: req.ArrayIndex,
		FirstItem:  start == 0 && end > 0,
		LastItem:   end == total && end > 0,
		MoreItems:  end < total,
		ItemCount:  uint32(end - start),
		ItemData:   itemData,
	}
	return tsm.Response{Kind: tsm.RespComplexAck, ServiceChoice: service.ServiceReadRange, Data: ack.Encode()}
}

// rangeItems resolves the list a ReadRange targets: a list-valued property
// in the database, or a registered Trend Log's buffer (each record encoded
// as a character string "timestamp,value").
func (a *Application) rangeItems(req service.ReadRangeRequest) ([][]byte, int, error) {
	if log := a.trendEngine.Find(req.ObjectID); log != nil && req.Property == object.PropLogBuffer {
		records := log.Records()
		items := make([][]byte, 0, len(records))
		for _, rec := range records {
			enc, err := primitive.EncodeValue(bactypes.CharacterString{Value: rec.Timestamp + "," + rec.Value})
			if err != nil {
				return nil, 0, err
			}
			items = append(items, enc)
		}
		return items, len(items), nil
	}

	value, err := a.db.Read(req.ObjectID, req.Property, nil)
	if err != nil {
		return nil, 0, err
	}
	list, ok := value.(object.ValueList)
	if !ok {
		return nil, 0, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodePropertyIsNotAnArray)
	}
	items := make([][]byte, 0, len(list))
	for _, v := range list {
		enc, err := primitive.EncodeValue(v)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, enc)
	}
	return items, len(items), nil
}

// rangeWindow clamps the request's range qualifier to [start, end) indices
// over a list of total items. Negative counts read backward from the
// reference position.
func rangeWindow(req service.ReadRangeRequest, total int) (int, int) {
	switch req.Kind {
	case service.RangeByPosition:
		ref := int(req.ReferenceIndex) - 1
		if ref < 0 {
			ref = 0
		}
		if req.Count >= 0 {
			start := ref
			end := ref + int(req.Count)
			return clampRange(start, end, total)
		}
		start := ref + int(req.Count) + 1
		end := ref + 1
		return clampRange(start, end, total)
	default:
		// RangeAll and, conservatively, the by-sequence/by-time forms
		// (which this port serves as whole-list reads).
		return 0, total
	}
}

func clampRange(start, end, total int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	if start > end {
		return 0, 0
	}
	return start, end
}

func (a *Application) handleAtomicReadFile(data []byte) tsm.Response {
	req, err := service.DecodeAtomicReadFileRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	file, berr := a.lookupFile(req.FileID)
	if berr != nil {
		return errorResponse(service.ServiceAtomicReadFile, berr)
	}
	chunk, eof, err := file.ReadStream(req.Start, req.Count)
	if err != nil {
		return errorResponse(service.ServiceAtomicReadFile, err)
	}
	ack := service.AtomicReadFileACK{EndOfFile: eof, Start: req.Start, Data: chunk}
	return tsm.Response{Kind: tsm.RespComplexAck, ServiceChoice: service.ServiceAtomicReadFile, Data: ack.Encode()}
}

func (a *Application) handleAtomicWriteFile(data []byte) tsm.Response {
	req, err := service.DecodeAtomicWriteFileRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	file, berr := a.lookupFile(req.FileID)
	if berr != nil {
		return errorResponse(service.ServiceAtomicWriteFile, berr)
	}
	start, err := file.WriteStream(req.Start, req.Data)
	if err != nil {
		return errorResponse(service.ServiceAtomicWriteFile, err)
	}
	ack := service.AtomicWriteFileACK{Start: start}
	return tsm.Response{Kind: tsm.RespComplexAck, ServiceChoice: service.ServiceAtomicWriteFile, Data: ack.Encode()}
}

func (a *Application) lookupFile(id bactypes.ObjectID) (*object.File, error) {
	obj, err := a.db.Get(id)
	if err != nil {
		return nil, err
	}
	file, ok := obj.(*object.File)
	if !ok {
		return nil, bacerr.Protocol(bacerr.ClassServices, bacerr.CodeInconsistentParameters)
	}
	return file, nil
}

func (a *Application) handleCreateObject(data []byte) tsm.Response {
	req, err := service.DecodeCreateObjectRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}

	id, berr := a.resolveCreateID(req)
	if berr != nil {
		return errorResponse(service.ServiceCreateObject, berr)
	}
	name := initialName(req.InitialValues, id)

	var obj object.Object
	switch id.Type {
	case bactypes.ObjectAnalogValue:
		obj = object.NewAnalogValue(id, name, object.UnitsNoUnits)
	case bactypes.ObjectBinaryValue:
		obj = object.NewBinaryValue(id, name)
	case bactypes.ObjectFile:
		obj = object.NewFile(id, name, "data")
	default:
		return errorResponse(service.ServiceCreateObject, bacerr.Protocol(bacerr.ClassObject, bacerr.CodeDynamicCreationNotSupported))
	}

	if err := a.db.Add(obj); err != nil {
		return errorResponse(service.ServiceCreateObject, err)
	}
	for _, pv := range req.InitialValues {
		if pv.Property == object.PropObjectName {
			continue
		}
		if err := obj.Write(pv.Property, pv.Value, pv.Priority, pv.ArrayIndex); err != nil {
			_ = a.db.Remove(id)
			return errorResponse(service.ServiceCreateObject, err)
		}
	}
	ack := service.CreateObjectACK{ObjectID: id}
	return tsm.Response{Kind: tsm.RespComplexAck, ServiceChoice: service.ServiceCreateObject, Data: ack.Encode()}
}

func (a *Application) resolveCreateID(req service.CreateObjectRequest) (bactypes.ObjectID, error) {
	if req.ObjectID != nil {
		return *req.ObjectID, nil
	}
	if req.ObjectType == nil {
		return bactypes.ObjectID{}, bacerr.Protocol(bacerr.ClassServices, bacerr.CodeInconsistentParameters)
	}
	// The device picks the instance: one past the highest in use for the
	// type.
	next := uint32(1)
	for _, existing := range a.db.List() {
		if existing.Type == *req.ObjectType && existing.Instance >= next {
			next = existing.Instance + 1
		}
	}
	return bactypes.ObjectID{Type: *req.ObjectType, Instance: next}, nil
}

func initialName(values []service.PropertyValue, id bactypes.ObjectID) string {
	for _, pv := range values {
		if pv.Property == object.PropObjectName {
			if cs, ok := pv.Value.(bactypes.CharacterString); ok {
				return cs.Value
			}
		}
	}
	return fmt.Sprintf("%s-%d", id.Type, id.Instance)
}

func (a *Application) handleDeleteObject(data []byte) tsm.Response {
	req, err := service.DecodeDeleteObjectRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	if err := a.db.Remove(req.ObjectID); err != nil {
		return errorResponse(service.ServiceDeleteObject, err)
	}
	a.covMgr.RemoveObjectSubscriptions(req.ObjectID)
	return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: service.ServiceDeleteObject}
}

func (a *Application) handleListElement(serviceChoice byte, data []byte, add bool) tsm.Response {
	req, err := service.DecodeListElementRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	obj, err := a.db.Get(req.ObjectID)
	if err != nil {
		return errorResponse(serviceChoice, err)
	}
	if _, ok := obj.Defs()[req.Property]; !ok {
		return errorResponse(serviceChoice, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeUnknownProperty))
	}
	store, ok := obj.(rawStore)
	if !ok {
		return errorResponse(serviceChoice, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeWriteAccessDenied))
	}

	var list object.ValueList
	if current, ok := store.GetRaw(req.Property); ok {
		if existing, ok := current.(object.ValueList); ok {
			list = existing
		} else {
			return errorResponse(serviceChoice, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodePropertyIsNotAnArray))
		}
	}

	if add {
		for _, elem := range req.Elements {
			if !containsValue(list, elem) {
				list = append(list, elem)
			}
		}
	} else {
		for _, elem := range req.Elements {
			idx := indexOfValue(list, elem)
			if idx < 0 {
				return errorResponse(serviceChoice, bacerr.Protocol(bacerr.ClassServices, bacerr.CodeInconsistentParameters))
			}
			list = append(list[:idx], list[idx+1:]...)
		}
	}
	store.SetRaw(req.Property, list)
	return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: serviceChoice}
}

// valueEqual compares two primitives by encoded bytes — some value types
// (OctetString) are not comparable with ==.
func valueEqual(a, b bactypes.Value) bool {
	if a.ApplicationTag() != b.ApplicationTag() {
		return false
	}
	ea, errA := primitive.EncodeValue(a)
	eb, errB := primitive.EncodeValue(b)
	if errA != nil || errB != nil {
		return false
	}
	if len(ea) != len(eb) {
		return false
	}
	for i := range ea {
		if ea[i] != eb[i] {
			return false
		}
	}
	return true
}

func containsValue(list object.ValueList, v bactypes.Value) bool {
	return indexOfValue(list, v) >= 0
}

func indexOfValue(list object.ValueList, v bactypes.Value) int {
	for i, e := range list {
		if valueEqual(e, v) {
			return i
		}
	}
	return -1
}

func (a *Application) handleDeviceCommunicationControl(data []byte) tsm.Response {
	req, err := service.DecodeDeviceCommunicationControlRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	if !a.passwordOK(req.Password) {
		return errorResponse(service.ServiceDeviceCommunicationControl, bacerr.Protocol(bacerr.ClassSecurity, bacerr.CodePasswordFailure))
	}
	a.setCommState(req.Enable, req.TimeDurationMinutes)
	return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: service.ServiceDeviceCommunicationControl}
}

func (a *Application) handleReinitializeDevice(data []byte) tsm.Response {
	req, err := service.DecodeReinitializeDeviceRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	if !a.passwordOK(req.Password) {
		return errorResponse(service.ServiceReinitializeDevice, bacerr.Protocol(bacerr.ClassSecurity, bacerr.CodePasswordFailure))
	}
	// A reinitialize re-enables communication regardless of a prior
	// Device-Communication-Control.
	a.setCommState(service.CommEnable, nil)
	a.log.WithField("state", req.State).Info("reinitialize-device")
	if a.cfg.OnReinitialize != nil {
		a.cfg.OnReinitialize(req.State)
	}
	return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: service.ServiceReinitializeDevice}
}

func (a *Application) passwordOK(supplied *string) bool {
	if a.cfg.Password == "" {
		return true
	}
	return supplied != nil && *supplied == a.cfg.Password
}

func asProtocolError(err error) *bacerr.Error {
	if be, ok := err.(*bacerr.Error); ok && be.Kind == bacerr.KindProtocol {
		return be
	}
	return bacerr.Protocol(bacerr.ClassDevice, bacerr.CodeOther)
}
