package rollup

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/godwoken/web3-indexer/internal/web3"
)

// Log item service flags (spec §4.1).
const (
	ServiceFlagSudtTransfer   byte = 0x00
	ServiceFlagSudtPayFee     byte = 0x01
	ServiceFlagPolyjuiceSystem byte = 0x02
	ServiceFlagPolyjuiceUser  byte = 0x03
)

// GWUserLogDataMaxSize bounds a PolyjuiceUser log's data field (spec
// §4.1: 4 KiB).
const GWUserLogDataMaxSize = 4 * 1024

// LogItem is the decoded payload of one rollup log item, tagged by its
// original ServiceFlag. Exactly one of the typed fields below is
// populated, selected by ServiceFlag.
type LogItem struct {
	ServiceFlag byte

	// SudtTransfer / SudtPayFee
	SudtFrom   web3.Address
	SudtTo     web3.Address
	SudtAmount *uint256.Int

	// PolyjuiceSystem
	SystemGasUsed           uint64
	SystemCumulativeGasUsed uint64
	SystemCreatedAddress    web3.Address
	SystemStatusCode        uint32

	// PolyjuiceUser
	UserAddress web3.Address
	UserData    []byte
	UserTopics  []web3.Hash
}

// DecodeLogItem decodes one tagged log item payload (spec §4.1).
func DecodeLogItem(serviceFlag byte, data []byte) (*LogItem, error) {
	switch serviceFlag {
	case ServiceFlagSudtTransfer, ServiceFlagSudtPayFee:
		return decodeSudtLog(serviceFlag, data)
	case ServiceFlagPolyjuiceSystem:
		return decodePolyjuiceSystemLog(data)
	case ServiceFlagPolyjuiceUser:
		return decodePolyjuiceUserLog(data)
	default:
		return nil, decodeErrorf("invalid log service flag: %d", serviceFlag)
	}
}

func decodeSudtLog(serviceFlag byte, data []byte) (*LogItem, error) {
	const want = 1 + web3.AddressLength + web3.AddressLength + 16
	if len(data) != want {
		return nil, decodeErrorf("sudt log: expected %d bytes, got %d", want, len(data))
	}
	if data[0] != 20 {
		return nil, decodeErrorf("sudt log: expected literal address-length byte 20, got %d", data[0])
	}
	from := web3.BytesToAddress(data[1:21])
	to := web3.BytesToAddress(data[21:41])
	amount := new(uint256.Int).SetBytes(reverse(data[41:57]))
	return &LogItem{
		ServiceFlag: serviceFlag,
		SudtFrom:    from,
		SudtTo:      to,
		SudtAmount:  amount,
	}, nil
}

func decodePolyjuiceSystemLog(data []byte) (*LogItem, error) {
	const want = 8 + 8 + web3.AddressLength + 4
	if len(data) != want {
		return nil, decodeErrorf("polyjuice system log: expected %d bytes, got %d", want, len(data))
	}
	gasUsed := binary.LittleEndian.Uint64(data[0:8])
	cumulativeGasUsed := binary.LittleEndian.Uint64(data[8:16])
	created := web3.BytesToAddress(data[16:36])
	statusCode := binary.LittleEndian.Uint32(data[36:40])
	return &LogItem{
		ServiceFlag:             ServiceFlagPolyjuiceSystem,
		SystemGasUsed:           gasUsed,
		SystemCumulativeGasUsed: cumulativeGasUsed,
		SystemCreatedAddress:    created,
		SystemStatusCode:        statusCode,
	}, nil
}

func decodePolyjuiceUserLog(data []byte) (*LogItem, error) {
	offset := 0
	if len(data) < offset+web3.AddressLength+4 {
		return nil, decodeErrorf("polyjuice user log: too short for address+data_size")
	}
	address := web3.BytesToAddress(data[offset : offset+web3.AddressLength])
	offset += web3.AddressLength

	dataSize := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4
	if dataSize > GWUserLogDataMaxSize {
		return nil, decodeErrorf("polyjuice user log: data_size too large: %d", dataSize)
	}
	if len(data) < offset+int(dataSize) {
		return nil, decodeErrorf("polyjuice user log: data_size exceeds payload: %d", dataSize)
	}
	logData := make([]byte, dataSize)
	copy(logData, data[offset:offset+int(dataSize)])
	offset += int(dataSize)

	if len(data) < offset+4 {
		return nil, decodeErrorf("polyjuice user log: too short for topics_count")
	}
	topicsCount := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	topics := make([]web3.Hash, 0, topicsCount)
	for i := uint32(0); i < topicsCount; i++ {
		if len(data) < offset+web3.HashLength {
			return nil, decodeErrorf("polyjuice user log: truncated topic %d", i)
		}
		topics = append(topics, web3.BytesToHash(data[offset:offset+web3.HashLength]))
		offset += web3.HashLength
	}

	if offset != len(data) {
		return nil, decodeErrorf("polyjuice user log: trailing bytes: offset=%d len=%d", offset, len(data))
	}

	return &LogItem{
		ServiceFlag: ServiceFlagPolyjuiceUser,
		UserAddress: address,
		UserData:    logData,
		UserTopics:  topics,
	}, nil
}

// EncodeLogItem is the inverse of DecodeLogItem for the variants the
// round-trip tests exercise (spec §8).
func EncodeLogItem(item *LogItem) []byte {
	switch item.ServiceFlag {
	case ServiceFlagSudtTransfer, ServiceFlagSudtPayFee:
		out := make([]byte, 1+20+20+16)
		out[0] = 20
		copy(out[1:21], item.SudtFrom[:])
		copy(out[21:41], item.SudtTo[:])
		putUint128LE(out[41:57], item.SudtAmount)
		return out
	case ServiceFlagPolyjuiceSystem:
		out := make([]byte, 8+8+20+4)
		binary.LittleEndian.PutUint64(out[0:8], item.SystemGasUsed)
		binary.LittleEndian.PutUint64(out[8:16], item.SystemCumulativeGasUsed)
		copy(out[16:36], item.SystemCreatedAddress[:])
		binary.LittleEndian.PutUint32(out[36:40], item.SystemStatusCode)
		return out
	case ServiceFlagPolyjuiceUser:
		out := make([]byte, 0, 20+4+len(item.UserData)+4+32*len(item.UserTopics))
		out = append(out, item.UserAddress[:]...)
		sizeBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(sizeBuf, uint32(len(item.UserData)))
		out = append(out, sizeBuf...)
		out = append(out, item.UserData...)
		countBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(countBuf, uint32(len(item.UserTopics)))
		out = append(out, countBuf...)
		for _, t := range item.UserTopics {
			out = append(out, t[:]...)
		}
		return out
	default:
		return nil
	}
}
