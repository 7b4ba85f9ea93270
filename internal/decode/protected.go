package decode

import (
	"bytes"
	"errors"
	"unicode/utf16"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
	"github.com/xuri/excelize/v2"
)

// oleHeader starts every OLE2 compound file.
var oleHeader = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// encryptionInfoName is the UTF-16LE directory entry of an encrypted OOXML
// package.
var encryptionInfoName = utf16LE("EncryptionInfo")

var (
	errPasswordRequired      = errors.New("document is password protected and no password was supplied")
	errUnsupportedEncryption = errors.New("unsupported encryption mechanism")
)

func utf16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

// isProtectedOOXML reports whether data is an OLE container wrapping an
// encrypted OOXML package.
func isProtectedOOXML(data []byte) bool {
	return bytes.HasPrefix(data, oleHeader) && bytes.Contains(data, encryptionInfoName)
}

// protectedDecoder decrypts an ECMA-376 encrypted package with the request
// password and hands the plain package back to the registry.
type protectedDecoder struct {
	registry *Registry
}

func (d *protectedDecoder) Decode(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	if in.Password == "" {
		return nil, extract.Encrypted(errPasswordRequired)
	}
	plain, err := decryptPackage(in.Data, in.Password)
	if err != nil {
		return nil, err
	}
	// A wrong password decrypts to noise rather than failing.
	if _, err := openZip(plain, "decrypted package"); err != nil {
		return nil, extract.Encrypted(excelize.ErrWorkbookPassword)
	}
	md.Set("encrypted", "true")
	inner := &extract.Input{Data: plain, Name: in.Name, Password: in.Password}
	return d.registry.Decode(inner, sink, md)
}

// decryptPackage returns the plain OOXML package inside an encrypted OLE
// container. A container whose streams cannot be read is malformed; a
// mechanism excelize does not implement is reported as encrypted.
func decryptPackage(data []byte, password string) (plain []byte, err error) {
	defer func() {
		if v := recover(); v != nil {
			plain, err = nil, extract.Malformedf("encrypted package is unreadable: %v", v)
		}
	}()
	plain, err = excelize.Decrypt(data, &excelize.Options{Password: password})
	if err != nil {
		return nil, extract.Encrypted(err)
	}
	if len(plain) == 0 {
		return nil, extract.Encrypted(errUnsupportedEncryption)
	}
	return plain, nil
}
