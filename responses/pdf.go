package responses

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
)

// WritePDFBytesWithFilename writes an inline PDF response. A non-empty etag
// is sent quoted.
func WritePDFBytesWithFilename(w http.ResponseWriter, filename string, etag string, PDFBytes []byte) {
	if etag != "" {
		w.Header().Set("ETag", strconv.Quote(etag))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(PDFBytes)))
	WritePDFResponseHeaders(w, filename)
	_, err := w.Write(PDFBytes)
	if err != nil {
		log.Printf("[ERROR] writing PDF to response: %v", err)
	}
}

// WritePDFResponseHeaders write HTTP response headers for PDF response. i.e. headers are frozen
func WritePDFResponseHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.WriteHeader(http.StatusOK) // Response Header Sent & Frozen
}
