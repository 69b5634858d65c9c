package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	actSchema := compile("act.schema.json")
	frameSchema := compile("frame.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"ranger",
	  "map_id":"town"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "actor_id":"P1",
	  "map_id":"town",
	  "map_params":{
	    "tick_rate_hz":60,
	    "width_tiles":20,
	    "height_tiles":15,
	    "tile_width":30,
	    "tile_height":30
	  },
	  "zone_manifest":[{"zone_id":"dungeon","map_id":"dungeon"},{"zone_id":"town"}]
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "action":"move_route",
	  "route":[
	    {"kind":"tile_step","direction":2,"count":3},
	    {"kind":"turn","direction":3},
	    {"kind":"toward_target","target_id":"EV1","count":2}
	  ]
	}`), &act)
	validate(actSchema, act)

	var change any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "action":"change_map",
	  "target_map_id":"dungeon"
	}`), &change)
	validate(actSchema, change)

	var frame any
	_ = json.Unmarshal([]byte(`{
	  "type":"FRAME",
	  "protocol_version":"1.0",
	  "map_id":"town",
	  "tick":412,
	  "actors":[{"id":"P1","x":90,"y":60,"z":0,"direction":2}],
	  "tiles":[{"x":3,"y":2,"layer":"ground","tile":7,"collision":true}],
	  "transitions":[{"actor_id":"P1","shape":"S2","kind":"out"},{"actor_id":"P1","shape":"S3","kind":"in"}],
	  "joins":["P2"],
	  "leaves":[]
	}`), &frame)
	validate(frameSchema, frame)
}
