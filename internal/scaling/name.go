package scaling

import "strings"

// DeriveName computes a variant's display name from the original name and
// the size label. The label goes before the extension: "photo.jpg" with
// label "small" becomes "photo (small).jpg". When the negotiated type
// differs from the reference type the extension is replaced with the
// negotiated subtype. A name without a dot gets the label appended and no
// extension at all.
func DeriveName(originalName, label, negotiatedType, referenceType string) string {
	dot := strings.LastIndex(originalName, ".")
	if dot < 0 {
		return originalName + " (" + label + ")"
	}

	ext := originalName[dot+1:]
	if negotiatedType != referenceType {
		if s := subtype(negotiatedType); s != "" {
			ext = s
		}
	}

	return originalName[:dot] + " (" + label + ")." + ext
}
