package urls

// Protocol references printed in help text and troubleshooting output.

// SSDPDraft is the IETF draft defining SSDP/1.0, the protocol token
// advertised in SERVER and USER-AGENT values.
const SSDPDraft = "https://datatracker.ietf.org/doc/html/draft-cai-ssdp-v1-03"

// DeviceArchitecture is the UPnP Device Architecture specification,
// whose discovery section profiles SSDP (NT, USN, CACHE-CONTROL, MX).
const DeviceArchitecture = "https://openconnectivity.org/upnp-specs/UPnP-arch-DeviceArchitecture-v2.0-20200417.pdf"

// MulticastAddresses is the IANA registry entry for 239.255.255.250.
const MulticastAddresses = "https://www.iana.org/assignments/multicast-addresses/multicast-addresses.xhtml"
