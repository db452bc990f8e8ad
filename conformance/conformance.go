// Package conformance provides a read-only view of which BIBBs and
// services this stack implements — enough to answer "can this device talk
// to that one" without the full PICS tooling a conformance test lab would
// run.
package conformance

// BIBB is one Building Interoperability Block this implementation
// supports, named as ASHRAE 135 Annex K identifies them.
type BIBB struct {
	Name        string
	Description string
}

// ServiceSupport records whether a service is initiated, executed, both,
// or neither by this stack.
type ServiceSupport struct {
	Service   string
	Initiates bool
	Executes  bool
}

// Report is the static conformance snapshot returned by Generate.
type Report struct {
	BIBBs    []BIBB
	Services []ServiceSupport
}

// Generate returns the fixed conformance view for this implementation. It
// names no device-specific facts (those belong in the Device object's own
// properties); it only describes what the code in this module does.
func Generate() Report {
	return Report{
		BIBBs: []BIBB{
			{Name: "DS-RP-A", Description: "Data Sharing - ReadProperty - A (initiate)"},
			{Name: "DS-RP-B", Description: "Data Sharing - ReadProperty - B (execute)"},
			{Name: "DS-RPM-A", Description: "Data Sharing - ReadPropertyMultiple - A (initiate)"},
			{Name: "DS-RPM-B", Description: "Data Sharing - ReadPropertyMultiple - B (execute)"},
			{Name: "DS-WP-A", Description: "Data Sharing - WriteProperty - A (initiate)"},
			{Name: "DS-WP-B", Description: "Data Sharing - WriteProperty - B (execute)"},
			{Name: "DS-WPM-A", Description: "Data Sharing - WritePropertyMultiple - A (initiate)"},
			{Name: "DS-WPM-B", Description: "Data Sharing - WritePropertyMultiple - B (execute)"},
			{Name: "DS-COV-A", Description: "Data Sharing - COV - A (initiate subscribe)"},
			{Name: "DS-COV-B", Description: "Data Sharing - COV - B (execute subscribe, send notifications)"},
			{Name: "DM-DDB-A", Description: "Device Management - Dynamic Device Binding - A (Who-Is/I-Am initiate)"},
			{Name: "DM-DDB-B", Description: "Device Management - Dynamic Device Binding - B (Who-Is/I-Am execute)"},
			{Name: "DM-DOB-A", Description: "Device Management - Dynamic Object Binding - A (Who-Has/I-Have initiate)"},
			{Name: "DM-DOB-B", Description: "Device Management - Dynamic Object Binding - B (Who-Has/I-Have execute)"},
			{Name: "DM-DCC-B", Description: "Device Management - Device Communication Control - B (execute)"},
			{Name: "DM-RD-B", Description: "Device Management - Reinitialize Device - B (execute)"},
			{Name: "DM-TS-A", Description: "Device Management - TimeSynchronization - A (initiate)"},
			{Name: "DM-TS-B", Description: "Device Management - TimeSynchronization - B (execute)"},
			{Name: "DM-OCD-B", Description: "Device Management - Object Creation and Deletion - B (execute)"},
			{Name: "DS-AM-B", Description: "Data Sharing - AtomicReadFile/AtomicWriteFile - B (execute)"},
			{Name: "SCHED-A", Description: "Scheduling - A (evaluate Schedule objects, command outputs)"},
			{Name: "T-VMT-A", Description: "Trending - Viewing and Modifying Trend data - A (TrendLog buffer, export)"},
			{Name: "T-VMT-B", Description: "Trending - Viewing and Modifying Trend data - B (ReadRange execute)"},
			{Name: "NM-CE-A", Description: "Network Management - Connection Establishment - A (BACnet/SC node)"},
		},
		Services: []ServiceSupport{
			{Service: "ReadProperty", Initiates: true, Executes: true},
			{Service: "ReadPropertyMultiple", Initiates: true, Executes: true},
			{Service: "WriteProperty", Initiates: true, Executes: true},
			{Service: "WritePropertyMultiple", Initiates: true, Executes: true},
			{Service: "SubscribeCOV", Initiates: true, Executes: true},
			{Service: "ConfirmedCOVNotification", Initiates: true, Executes: false},
			{Service: "UnconfirmedCOVNotification", Initiates: true, Executes: false},
			{Service: "ReadRange", Initiates: true, Executes: true},
			{Service: "AtomicReadFile", Initiates: true, Executes: true},
			{Service: "AtomicWriteFile", Initiates: true, Executes: true},
			{Service: "CreateObject", Initiates: true, Executes: true},
			{Service: "DeleteObject", Initiates: true, Executes: true},
			{Service: "AddListElement", Initiates: true, Executes: true},
			{Service: "RemoveListElement", Initiates: true, Executes: true},
			{Service: "DeviceCommunicationControl", Initiates: true, Executes: true},
			{Service: "ReinitializeDevice", Initiates: true, Executes: true},
			{Service: "AcknowledgeAlarm", Initiates: true, Executes: false},
			{Service: "GetAlarmSummary", Initiates: true, Executes: false},
			{Service: "GetEventInformation", Initiates: true, Executes: false},
			{Service: "GetEnrollmentSummary", Initiates: true, Executes: false},
			{Service: "AuditLogQuery", Initiates: true, Executes: false},
			{Service: "AuditNotification", Initiates: true, Executes: false},
			{Service: "Who-Is", Initiates: true, Executes: true},
			{Service: "I-Am", Initiates: true, Executes: true},
			{Service: "Who-Has", Initiates: true, Executes: true},
			{Service: "I-Have", Initiates: true, Executes: true},
			{Service: "TimeSynchronization", Initiates: true, Executes: true},
			{Service: "UTCTimeSynchronization", Initiates: true, Executes: true},
		},
	}
}

// Supports reports whether the named BIBB is in the report.
func (r Report) Supports(bibb string) bool {
	for _, b := range r.BIBBs {
		if b.Name == bibb {
			return true
		}
	}
	return false
}
