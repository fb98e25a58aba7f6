// Package header provides the field store shared by every SSDP message.
//
// A Header maps case-insensitive field names to ordered lists of values and
// remembers the order in which distinct names were first added, so a message
// serializes its fields in the same order they were parsed or built.
//
//	h := header.New()
//	_ = h.Add("ST", "ssdp:all")
//	_ = h.Add("MX", "1")
//	h.Get("st", "")   // "ssdp:all"
//	_ = h.Set("ST", "urn:schemas-upnp-org:device:MediaRenderer:1")
//
// Set removes and re-adds a field, which moves it to the end of the store.
package header
