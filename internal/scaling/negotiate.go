package scaling

// NegotiateType chooses the output MIME type for one variant. The empty
// string stands for an absent type on both sides: an empty requestedType
// means the size spec did not ask for a specific encoding, and an empty
// result means no override — downstream rendering then encodes to PNG.
//
// Rules, in order:
//  1. Neither default nor requested type: PNG, unless the reference is
//     already JPEG, then JPEG.
//  2. No requested type: the default, verbatim and unvalidated.
//  3. Requested type is previewable: honor it, except TIFF which is only
//     honored when the platform reports TIFF preview support.
//  4. Anything else falls back to the default.
func NegotiateType(defaultType, requestedType, referenceType string, caps Capabilities) string {
	if defaultType == "" && requestedType == "" {
		if referenceType == MIMEJPEG {
			return MIMEJPEG
		}
		return MIMEPNG
	}

	if requestedType == "" {
		return defaultType
	}

	if previewableMIMETypes[requestedType] {
		if requestedType != MIMETIFF || caps.TIFFPreview {
			return requestedType
		}
	}

	return defaultType
}
