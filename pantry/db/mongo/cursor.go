package mongo

import (
	"encoding/base64"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cursor is a keyset position for lists sorted newest first by a time
// field, with _id as the tiebreak.
type Cursor struct {
	At time.Time          `bson:"t"`
	ID primitive.ObjectID `bson:"i"`
}

// Encode returns c as an opaque URL-safe token.
func (c Cursor) Encode() string {
	b, _ := bson.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token from Encode. ok is false for empty or
// malformed input.
func DecodeCursor(s string) (c Cursor, ok bool) {
	if s == "" {
		return Cursor{}, false
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}
	if err := bson.Unmarshal(b, &c); err != nil || c.ID.IsZero() {
		return Cursor{}, false
	}
	return c, true
}

// Older returns a filter matching documents after c in a
// {field: -1, _id: -1} ordering.
func (c Cursor) Older(field string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: field, Value: bson.D{{Key: "$lt", Value: c.At}}}},
		bson.D{
			{Key: field, Value: c.At},
			{Key: "_id", Value: bson.D{{Key: "$lt", Value: c.ID}}},
		},
	}}}
}
