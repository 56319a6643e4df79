package quicrx

//
// Supported QUIC versions
//

// SupportedVersions lists the QUIC versions this endpoint understands, in
// preference order. Index 0 is the version offered first during version
// negotiation.
var SupportedVersions = []uint32{
	0xff00001d, // draft-29
	0x00000001, // RFC 9000
}

// versionIndex returns the index of version within SupportedVersions, or
// -1 if the version is not supported. PacketHeader.VersionIndex uses the
// same sentinel.
func versionIndex(version uint32) int {
	for i, v := range SupportedVersions {
		if v == version {
			return i
		}
	}
	return -1
}
