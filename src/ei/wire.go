package ei

import (
	"bytes"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the Egg, Inc. protocol messages used here.
const (
	authMessage    protowire.Number = 1
	authCompressed protowire.Number = 4

	reqContractID protowire.Number = 1
	reqCoopID     protowire.Number = 2
	reqUserID     protowire.Number = 3
	reqInfo       protowire.Number = 5

	infoUserID        protowire.Number = 1
	infoClientVersion protowire.Number = 2
	infoVersion       protowire.Number = 3
	infoBuild         protowire.Number = 4
	infoPlatform      protowire.Number = 5

	statusContractID       protowire.Number = 1
	statusTotalAmount      protowire.Number = 2
	statusCoopID           protowire.Number = 3
	statusContributors     protowire.Number = 4
	statusSecondsRemaining protowire.Number = 5
	statusSinceAllGoals    protowire.Number = 16
	statusGrade            protowire.Number = 17
	statusResponseStatus   protowire.Number = 19

	contribUserID       protowire.Number = 1
	contribUserName     protowire.Number = 2
	contribAmount       protowire.Number = 3
	contribRate         protowire.Number = 6
	contribTokens       protowire.Number = 12
	contribBuffHistory  protowire.Number = 13
	contribTokensSpent  protowire.Number = 14
	contribFarmInfo     protowire.Number = 18
	farmInfoTimestamp   protowire.Number = 22
	buffEggLayingRate   protowire.Number = 1
	buffEarnings        protowire.Number = 2
	buffServerTimestamp protowire.Number = 3

	contractID              protowire.Number = 1
	contractEgg             protowire.Number = 2
	contractGoals           protowire.Number = 3
	contractCoopAllowed     protowire.Number = 4
	contractMaxCoopSize     protowire.Number = 5
	contractExpirationTime  protowire.Number = 6
	contractLengthSeconds   protowire.Number = 7
	contractName            protowire.Number = 9
	contractDescription     protowire.Number = 10
	contractMinutesPerToken protowire.Number = 15
	contractStartTime       protowire.Number = 17
	contractLegacy          protowire.Number = 19
	contractGradeSpecs      protowire.Number = 20
	contractSeasonID        protowire.Number = 23

	gradeSpecGrade         protowire.Number = 1
	gradeSpecGoals         protowire.Number = 2
	gradeSpecLengthSeconds protowire.Number = 4
	goalTargetAmount       protowire.Number = 2
)

// RequestInfo identifies the client making a request.
type RequestInfo struct {
	UserID        string
	ClientVersion uint32
	Version       string
	Build         string
	Platform      string
}

// CoopStatusRequest asks for the status of one coop.
type CoopStatusRequest struct {
	ContractID string
	CoopID     string
	UserID     string
	Info       RequestInfo
}

type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

// Numeric fields are accepted as either varint or fixed encodings.
func (f field) float() float64 {
	switch f.typ {
	case protowire.Fixed64Type:
		return math.Float64frombits(f.u)
	case protowire.Fixed32Type:
		return float64(math.Float32frombits(uint32(f.u)))
	}
	return float64(int64(f.u))
}

func (f field) int() int64 {
	switch f.typ {
	case protowire.Fixed64Type, protowire.Fixed32Type:
		return int64(f.float())
	}
	return int64(f.u)
}

func (f field) str() string {
	return string(f.b)
}

func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "bad tag")
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// UnwrapAuthenticated returns the payload of an AuthenticatedMessage, inflating it when compressed.
func UnwrapAuthenticated(b []byte) ([]byte, error) {
	var msg []byte
	compressed := false
	err := walk(b, func(f field) error {
		switch f.num {
		case authMessage:
			msg = f.b
		case authCompressed:
			compressed = f.u != 0
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "error decoding authenticated message")
	}
	if !compressed {
		return msg, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(msg))
	if err != nil {
		return nil, errors.Wrap(err, "error opening compressed message")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "error inflating message")
	}
	return out, nil
}

// WrapAuthenticated builds an AuthenticatedMessage around msg.
func WrapAuthenticated(msg []byte, compress bool) ([]byte, error) {
	if compress {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(msg); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		msg = buf.Bytes()
	}
	var b []byte
	b = protowire.AppendTag(b, authMessage, protowire.BytesType)
	b = protowire.AppendBytes(b, msg)
	if compress {
		b = protowire.AppendTag(b, authCompressed, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b, nil
}

// MarshalCoopStatusRequest encodes a ContractCoopStatusRequest.
func MarshalCoopStatusRequest(req *CoopStatusRequest) []byte {
	var info []byte
	info = appendString(info, infoUserID, req.Info.UserID)
	if req.Info.ClientVersion != 0 {
		info = protowire.AppendTag(info, infoClientVersion, protowire.VarintType)
		info = protowire.AppendVarint(info, uint64(req.Info.ClientVersion))
	}
	info = appendString(info, infoVersion, req.Info.Version)
	info = appendString(info, infoBuild, req.Info.Build)
	info = appendString(info, infoPlatform, req.Info.Platform)

	var b []byte
	b = appendString(b, reqContractID, req.ContractID)
	b = appendString(b, reqCoopID, req.CoopID)
	b = appendString(b, reqUserID, req.UserID)
	if len(info) > 0 {
		b = protowire.AppendTag(b, reqInfo, protowire.BytesType)
		b = protowire.AppendBytes(b, info)
	}
	return b
}

// UnmarshalCoopStatusRequest decodes a ContractCoopStatusRequest.
func UnmarshalCoopStatusRequest(b []byte) (*CoopStatusRequest, error) {
	req := &CoopStatusRequest{}
	err := walk(b, func(f field) error {
		switch f.num {
		case reqContractID:
			req.ContractID = f.str()
		case reqCoopID:
			req.CoopID = f.str()
		case reqUserID:
			req.UserID = f.str()
		case reqInfo:
			return walk(f.b, func(f field) error {
				switch f.num {
				case infoUserID:
					req.Info.UserID = f.str()
				case infoClientVersion:
					req.Info.ClientVersion = uint32(f.u)
				case infoVersion:
					req.Info.Version = f.str()
				case infoBuild:
					req.Info.Build = f.str()
				case infoPlatform:
					req.Info.Platform = f.str()
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "error decoding coop status request")
	}
	return req, nil
}

// UnmarshalCoopStatus decodes a ContractCoopStatusResponse.
func UnmarshalCoopStatus(b []byte) (*CoopStatus, error) {
	s := &CoopStatus{}
	err := walk(b, func(f field) error {
		switch f.num {
		case statusContractID:
			s.ContractID = f.str()
		case statusCoopID:
			s.CoopID = f.str()
		case statusTotalAmount:
			s.TotalAmount = f.float()
		case statusSecondsRemaining:
			s.SecondsRemaining = f.float()
		case statusSinceAllGoals:
			s.SecondsSinceAllGoalsAchieved = f.float()
		case statusGrade:
			s.Grade = Grade(f.int())
		case statusResponseStatus:
			s.Status = ResponseStatus(f.int())
		case statusContributors:
			c, err := unmarshalContributor(f.b)
			if err != nil {
				return err
			}
			s.Contributors = append(s.Contributors, c)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "error decoding coop status")
	}
	return s, nil
}

func unmarshalContributor(b []byte) (Contributor, error) {
	var c Contributor
	err := walk(b, func(f field) error {
		switch f.num {
		case contribUserID:
			c.UserID = f.str()
		case contribUserName:
			c.UserName = f.str()
		case contribAmount:
			c.Contribution = f.float()
		case contribRate:
			c.Rate = f.float()
		case contribTokens:
			c.TokensAvailable = int(f.int())
		case contribTokensSpent:
			c.TokensSpent = int(f.int())
		case contribBuffHistory:
			var buff Buff
			err := walk(f.b, func(f field) error {
				switch f.num {
				case buffEggLayingRate:
					buff.EggLayingRate = f.float()
				case buffEarnings:
					buff.Earnings = f.float()
				case buffServerTimestamp:
					buff.ServerTimestamp = f.float()
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.BuffHistory = append(c.BuffHistory, buff)
		case contribFarmInfo:
			return walk(f.b, func(f field) error {
				if f.num == farmInfoTimestamp {
					ts := f.float()
					c.Offset = &ts
				}
				return nil
			})
		}
		return nil
	})
	return c, err
}

// MarshalCoopStatus encodes a ContractCoopStatusResponse.
func MarshalCoopStatus(s *CoopStatus) []byte {
	var b []byte
	b = appendString(b, statusContractID, s.ContractID)
	b = appendDouble(b, statusTotalAmount, s.TotalAmount)
	b = appendString(b, statusCoopID, s.CoopID)
	for i := range s.Contributors {
		b = protowire.AppendTag(b, statusContributors, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalContributor(&s.Contributors[i]))
	}
	b = appendDouble(b, statusSecondsRemaining, s.SecondsRemaining)
	b = appendDouble(b, statusSinceAllGoals, s.SecondsSinceAllGoalsAchieved)
	b = appendVarint(b, statusGrade, uint64(s.Grade))
	b = appendVarint(b, statusResponseStatus, uint64(s.Status))
	return b
}

func marshalContributor(c *Contributor) []byte {
	var b []byte
	b = appendString(b, contribUserID, c.UserID)
	b = appendString(b, contribUserName, c.UserName)
	b = appendDouble(b, contribAmount, c.Contribution)
	b = appendDouble(b, contribRate, c.Rate)
	b = appendVarint(b, contribTokens, uint64(c.TokensAvailable))
	for _, buff := range c.BuffHistory {
		var bb []byte
		bb = appendDouble(bb, buffEggLayingRate, buff.EggLayingRate)
		bb = appendDouble(bb, buffEarnings, buff.Earnings)
		bb = appendDouble(bb, buffServerTimestamp, buff.ServerTimestamp)
		b = protowire.AppendTag(b, contribBuffHistory, protowire.BytesType)
		b = protowire.AppendBytes(b, bb)
	}
	b = appendVarint(b, contribTokensSpent, uint64(c.TokensSpent))
	if c.Offset != nil {
		fi := appendDouble(nil, farmInfoTimestamp, *c.Offset)
		b = protowire.AppendTag(b, contribFarmInfo, protowire.BytesType)
		b = protowire.AppendBytes(b, fi)
	}
	return b
}

// UnmarshalContract decodes a Contract message. Contracts without grade
// specs keep their top level goals under GradeUnset.
func UnmarshalContract(b []byte) (*Contract, error) {
	c := &Contract{Grades: map[Grade]GradeSpec{}}
	var legacyGoals []float64
	err := walk(b, func(f field) error {
		switch f.num {
		case contractID:
			c.ID = f.str()
		case contractEgg:
			c.Egg = Egg(f.int())
		case contractGoals:
			goal, err := unmarshalGoal(f.b)
			if err != nil {
				return err
			}
			legacyGoals = append(legacyGoals, goal)
		case contractCoopAllowed:
			c.CoopAllowed = f.u != 0
		case contractMaxCoopSize:
			c.MaxCoopSize = int(f.int())
		case contractExpirationTime:
			c.ExpirationTime = unixTime(f.float())
		case contractLengthSeconds:
			c.LengthSeconds = f.float()
		case contractName:
			c.Name = f.str()
		case contractDescription:
			c.Description = f.str()
		case contractMinutesPerToken:
			c.MinutesPerToken = f.float()
		case contractStartTime:
			c.StartTime = unixTime(f.float())
		case contractLegacy:
			c.Legacy = f.u != 0
		case contractSeasonID:
			c.SeasonID = f.str()
		case contractGradeSpecs:
			spec, err := unmarshalGradeSpec(f.b)
			if err != nil {
				return err
			}
			c.Grades[spec.Grade] = spec
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "error decoding contract")
	}
	if len(c.Grades) == 0 && len(legacyGoals) > 0 {
		c.Grades[GradeUnset] = GradeSpec{Grade: GradeUnset, Goals: legacyGoals, LengthSeconds: c.LengthSeconds}
	}
	return c, nil
}

func unmarshalGradeSpec(b []byte) (GradeSpec, error) {
	var spec GradeSpec
	err := walk(b, func(f field) error {
		switch f.num {
		case gradeSpecGrade:
			spec.Grade = Grade(f.int())
		case gradeSpecGoals:
			goal, err := unmarshalGoal(f.b)
			if err != nil {
				return err
			}
			spec.Goals = append(spec.Goals, goal)
		case gradeSpecLengthSeconds:
			spec.LengthSeconds = f.float()
		}
		return nil
	})
	return spec, err
}

func unmarshalGoal(b []byte) (float64, error) {
	target := 0.0
	err := walk(b, func(f field) error {
		if f.num == goalTargetAmount {
			target = f.float()
		}
		return nil
	})
	return target, err
}

// MarshalContract encodes a Contract message with its grade specs.
func MarshalContract(c *Contract) []byte {
	var b []byte
	b = appendString(b, contractID, c.ID)
	b = appendVarint(b, contractEgg, uint64(c.Egg))
	if c.CoopAllowed {
		b = appendVarint(b, contractCoopAllowed, 1)
	}
	b = appendVarint(b, contractMaxCoopSize, uint64(c.MaxCoopSize))
	if !c.ExpirationTime.IsZero() {
		b = appendDouble(b, contractExpirationTime, float64(c.ExpirationTime.Unix()))
	}
	b = appendDouble(b, contractLengthSeconds, c.LengthSeconds)
	b = appendString(b, contractName, c.Name)
	b = appendString(b, contractDescription, c.Description)
	b = appendDouble(b, contractMinutesPerToken, c.MinutesPerToken)
	if !c.StartTime.IsZero() {
		b = appendDouble(b, contractStartTime, float64(c.StartTime.Unix()))
	}
	if c.Legacy {
		b = appendVarint(b, contractLegacy, 1)
	}
	for g := GradeUnset; g <= GradeAAA; g++ {
		spec, ok := c.Grades[g]
		if !ok {
			continue
		}
		var sb []byte
		sb = appendVarint(sb, gradeSpecGrade, uint64(spec.Grade))
		for _, goal := range spec.Goals {
			sb = protowire.AppendTag(sb, gradeSpecGoals, protowire.BytesType)
			sb = protowire.AppendBytes(sb, appendDouble(nil, goalTargetAmount, goal))
		}
		sb = appendDouble(sb, gradeSpecLengthSeconds, spec.LengthSeconds)
		b = protowire.AppendTag(b, contractGradeSpecs, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}
	b = appendString(b, contractSeasonID, c.SeasonID)
	return b
}

func unixTime(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
