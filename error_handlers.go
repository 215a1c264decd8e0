package prioq

// reportInternalError reports a failure of the dispatcher itself,
// such as a CPU pinning error. If no handler is registered, the
// error is silently ignored.
func (d *Dispatcher) reportInternalError(err error) {
	if d.OnInternalError != nil {
		d.OnInternalError(err)
	}
}

// reportExecError reports a panic recovered from the executor.
//
// The request still receives a response and the worker keeps running.
func (d *Dispatcher) reportExecError(err error) {
	if d.OnExecError != nil {
		d.OnExecError(err)
	}
}

// reportDeliveryError reports a response its target refused,
// typically because the client connection is already gone.
func (d *Dispatcher) reportDeliveryError(err error) {
	if d.OnDeliveryError != nil {
		d.OnDeliveryError(err)
	}
}
