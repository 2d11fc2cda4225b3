package mcproxy

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestReadByte(t *testing.T) {
	// given
	var buffer bytes.Buffer

	value := byte('A')

	// when then
	err := WriteByte(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadByte(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadBytes(t *testing.T) {
	// given
	var buffer bytes.Buffer

	value := []byte("AAA")

	// when then
	err := WriteBytes(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadBytes(&buffer, len(value))
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadBool(t *testing.T) {
	// given
	var buffer bytes.Buffer

	value := true

	// when then
	err := WriteBool(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadBool(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadVarInt(t *testing.T) {
	// given
	var buffer bytes.Buffer

	value := 12345

	// when then
	err := WriteVarInt(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadVarInt(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadVarLong(t *testing.T) {
	// given
	var buffer bytes.Buffer

	var value int64 = 12345

	// when then
	err := WriteVarLong(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadVarLong(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadInt16(t *testing.T) {
	// given
	var buffer bytes.Buffer

	var value int16 = 12345

	// when then
	err := WriteInt16(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadInt16(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadInt32(t *testing.T) {
	// given
	var buffer bytes.Buffer

	var value int32 = 12345

	// when then
	err := WriteInt32(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadInt32(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadInt64(t *testing.T) {
	// given
	var buffer bytes.Buffer

	var value int64 = 12345

	// when then
	err := WriteInt64(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadInt64(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestDecodeEncodeUint16(t *testing.T) {
	// given
	buf := make([]byte, 2)
	var value uint16 = 12345

	// when
	EncodeUint16(buf, value)

	// then
	assert.Equal(t, value, DecodeUint16(buf), "values should match")
}

func TestDecodeEncodeUint32(t *testing.T) {
	// given
	buf := make([]byte, 4)
	var value uint32 = 123456789

	// when
	EncodeUint32(buf, value)

	// then
	assert.Equal(t, value, DecodeUint32(buf), "values should match")
}

func TestDecodeEncodeUint64(t *testing.T) {
	// given
	buf := make([]byte, 8)
	var value uint64 = 1234567890123

	// when
	EncodeUint64(buf, value)

	// then
	assert.Equal(t, value, DecodeUint64(buf), "values should match")
}

func TestDecodeEncodeBool(t *testing.T) {
	assert.True(t, DecodeBool(EncodeBool(true)), "true should round-trip")
	assert.False(t, DecodeBool(EncodeBool(false)), "false should round-trip")
}

func TestReadByteArray(t *testing.T) {
	// given
	var buffer bytes.Buffer

	value := []byte("Hello world")

	// when then
	err := WriteByteArray(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadByteArray(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}

func TestReadString(t *testing.T) {
	// given
	var buffer bytes.Buffer

	value := "Hello world"

	// when then
	err := WriteString(&buffer, value)
	if err != nil {
		assert.Nil(t, err, "write err should be nil")
	}

	readValue, err := ReadString(&buffer)
	if err != nil {
		assert.Nil(t, err, "read err should be nil")
	}

	assert.Equal(t, value, readValue, "values should match")
}
