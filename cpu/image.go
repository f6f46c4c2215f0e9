package cpu

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"unicode"
)

// Image is a flat memory image: an origin and the words to place there.
//
// On disk an image is a sequence of big-endian 16-bit words, the first of
// which is the origin.
type Image struct {
	Origin uint16
	Words  []uint16
}

// ParseImage decodes an image from its binary form.
func ParseImage(data []byte) (img *Image, err error) {
	if len(data) < 2 {
		err = ErrImageEmpty
		return
	}

	body := data[2:]
	if len(body)%2 != 0 {
		err = ErrImagePartialWord
		return
	}
	if len(body)/2 > MEMORY_SIZE {
		err = ErrAddressOverflow
		return
	}

	img = &Image{
		Origin: binary.BigEndian.Uint16(data),
		Words:  make([]uint16, len(body)/2),
	}

	for n := range img.Words {
		img.Words[n] = binary.BigEndian.Uint16(body[n*2:])
	}

	return
}

// ParseImageHex decodes an image written as hexadecimal text, such as
// "3000 E005 2213". White space and a leading 0x are ignored.
func ParseImageHex(text string) (img *Image, err error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	if len(text)%2 != 0 {
		// A dangling nibble can never make a whole word.
		err = ErrImagePartialWord
		return
	}

	data, err := hex.DecodeString(text)
	if err != nil {
		err = errors.Join(ErrImageHex, err)
		return
	}

	return ParseImage(data)
}

// ReadImage decodes an image from a stream.
func ReadImage(r io.Reader) (img *Image, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return
	}

	return ParseImage(data)
}

// ReadImageFile decodes an image from a file.
func ReadImageFile(path string) (img *Image, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return ReadImage(inf)
}

// Bytes encodes the image in its binary form.
func (img *Image) Bytes() (data []byte) {
	data = make([]byte, 2+2*len(img.Words))
	binary.BigEndian.PutUint16(data, img.Origin)
	for n, word := range img.Words {
		binary.BigEndian.PutUint16(data[2+2*n:], word)
	}
	return
}

// Load places the image in memory.
func (img *Image) Load(mem *Memory) error {
	return mem.LoadImage(img.Origin, img.Words)
}
