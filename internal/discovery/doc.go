// Package discovery finds SSDP devices and services on the local network.
//
// A Scanner sends an M-SEARCH and collects every matching announcement that
// arrives before its timeout, whether as a unicast search response or as a
// multicast NOTIFY. Services that announce ssdp:byebye or expire during the
// scan are dropped from the result.
//
// # Discovery Process
//
//  1. Starts an engine with immediate processing and all events enabled
//     (or uses the running engine given as Endpoint)
//  2. Sends an M-SEARCH for the scanner's subject
//  3. Converts Added and Updated events into Service values keyed by USN
//  4. Returns the services sorted by USN after the timeout
//
// # Usage Example
//
//	services, err := discovery.Scan(5 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, s := range services {
//	    fmt.Printf("Found: %s at %s\n", s.USN, s.Location)
//	}
//
//	// Wait for one service
//	svc, err := discovery.FindService("uuid:2fac1234-31f8-11b4-a222-08002b34c003::upnp:rootdevice")
package discovery
