package adapter

import "go.bug.st/serial/enumerator"

// CounterFactory is a function that creates a counter client from port details
type CounterFactory func(portDetails *enumerator.PortDetails) (Counter, error)

// CounterInfo contains information about a counter type
type CounterInfo struct {
	VendorID  uint16
	ProductID uint16
	Factory   CounterFactory
}

var registeredCounters []CounterInfo

// RegisterAdapter registers a counter factory with the VID/PID of its USB serial bridge
func RegisterAdapter(vendorID, productID uint16, factory CounterFactory) {
	registeredCounters = append(registeredCounters, CounterInfo{
		VendorID:  vendorID,
		ProductID: productID,
		Factory:   factory,
	})
}

// matchCounter returns the registered counter types whose bridge has the given VID/PID
func matchCounter(vendorID, productID uint16) []CounterInfo {
	var found []CounterInfo
	for _, info := range registeredCounters {
		if info.VendorID == vendorID && info.ProductID == productID {
			found = append(found, info)
		}
	}
	return found
}
