package domain

// Direction says which side of the broker originates traffic on a
// channel.
type Direction string

// Channel directions.
const (
	// ClientToBroker channels carry commands and queries.
	ClientToBroker Direction = "client_to_broker"

	// BrokerToClient channels carry replies and broadcasts.
	BrokerToClient Direction = "broker_to_client"
)

// Kind is a channel's cardinality contract.
type Kind string

// Channel kinds. A channel's kind must never change between versions;
// that would silently break clients serialized against the old
// contract.
const (
	// KindCommand is client to broker, fire-and-forget. Effects are
	// observable only through broadcast channels.
	KindCommand Kind = "command"

	// KindQuery is client to broker with exactly one reply on the
	// paired reply channel.
	KindQuery Kind = "query"

	// KindBroadcast is broker to client, zero-to-many deliveries to
	// zero-to-many current subscribers, without replay.
	KindBroadcast Kind = "broadcast"
)

// Channel names. The catalog is closed: both sides serialize against
// exactly this set.
const (
	ChannelSetFilePath          = "set-file-path"
	ChannelGetFilePath          = "get-file-path"
	ChannelFilePath             = "file-path"
	ChannelSetFileSettings      = "set-file-settings"
	ChannelSetAlgorithmSettings = "set-algorithm-settings"
	ChannelRunClustering        = "run-clustering"
	ChannelClusterProgress      = "cluster-progress"
	ChannelGetRuns              = "get-runs"
	ChannelRuns                 = "runs"
	ChannelGetCurrentRun        = "get-current-run"
	ChannelRun                  = "run"
	ChannelGetAssignments       = "get-cluster-assignments"
	ChannelAssignments          = "cluster-assignments"
	ChannelGetSimilarities      = "get-cluster-similarities"
	ChannelSimilarities         = "cluster-similarities"
	ChannelGetOutliers          = "get-outliers"
	ChannelOutliers             = "outliers"
	ChannelGetMergers           = "get-mergers"
	ChannelMergers              = "mergers"
	ChannelUpdateRunName        = "update-run-name"
	ChannelUpdateClusterName    = "update-cluster-name"
	ChannelDeleteRun            = "delete-run"
	ChannelSetRunID             = "set-run-id"
	ChannelResetRunID           = "reset-run-id"
	ChannelError                = "error"
)

// Channel describes one named communication channel: its direction,
// its cardinality, the reply channel for queries, and a payload
// prototype used to decode inbound data.
type Channel struct {
	// Name is the channel name.
	Name string

	// Direction says which side originates traffic.
	Direction Direction

	// Kind is the cardinality contract.
	Kind Kind

	// Reply names the reply channel for queries. Empty otherwise.
	Reply string

	// NewPayload allocates a payload value to decode into. Nil for
	// channels without a payload.
	NewPayload func() any
}

// registry is the closed channel catalog, static configuration shared
// by broker and clients.
var registry = []Channel{
	{Name: ChannelSetFilePath, Direction: ClientToBroker, Kind: KindCommand,
		NewPayload: func() any { return &FilePathPayload{} }},
	{Name: ChannelGetFilePath, Direction: ClientToBroker, Kind: KindQuery, Reply: ChannelFilePath},
	{Name: ChannelFilePath, Direction: BrokerToClient, Kind: KindQuery,
		NewPayload: func() any { return &FilePathPayload{} }},
	{Name: ChannelSetFileSettings, Direction: ClientToBroker, Kind: KindCommand,
		NewPayload: func() any { return &FileSettings{} }},
	{Name: ChannelSetAlgorithmSettings, Direction: ClientToBroker, Kind: KindCommand,
		NewPayload: func() any { return &AlgorithmSettings{} }},
	{Name: ChannelRunClustering, Direction: ClientToBroker, Kind: KindCommand},
	{Name: ChannelClusterProgress, Direction: BrokerToClient, Kind: KindBroadcast,
		NewPayload: func() any { return &ProgressEvent{} }},
	{Name: ChannelGetRuns, Direction: ClientToBroker, Kind: KindQuery, Reply: ChannelRuns},
	{Name: ChannelRuns, Direction: BrokerToClient, Kind: KindQuery,
		NewPayload: func() any { return &RunsMessage{} }},
	{Name: ChannelGetCurrentRun, Direction: ClientToBroker, Kind: KindQuery, Reply: ChannelRun},
	{Name: ChannelRun, Direction: BrokerToClient, Kind: KindQuery,
		NewPayload: func() any { return &CurrentRunMessage{} }},
	{Name: ChannelGetAssignments, Direction: ClientToBroker, Kind: KindQuery, Reply: ChannelAssignments},
	{Name: ChannelAssignments, Direction: BrokerToClient, Kind: KindQuery,
		NewPayload: func() any { return &ClusterAssignmentsMessage{} }},
	{Name: ChannelGetSimilarities, Direction: ClientToBroker, Kind: KindQuery, Reply: ChannelSimilarities},
	{Name: ChannelSimilarities, Direction: BrokerToClient, Kind: KindQuery,
		NewPayload: func() any { return &ClusterSimilaritiesMessage{} }},
	{Name: ChannelGetOutliers, Direction: ClientToBroker, Kind: KindQuery, Reply: ChannelOutliers},
	{Name: ChannelOutliers, Direction: BrokerToClient, Kind: KindQuery,
		NewPayload: func() any { return &OutliersMessage{} }},
	{Name: ChannelGetMergers, Direction: ClientToBroker, Kind: KindQuery, Reply: ChannelMergers},
	{Name: ChannelMergers, Direction: BrokerToClient, Kind: KindQuery,
		NewPayload: func() any { return &MergersMessage{} }},
	{Name: ChannelUpdateRunName, Direction: ClientToBroker, Kind: KindCommand,
		NewPayload: func() any { return &RunNamePayload{} }},
	{Name: ChannelUpdateClusterName, Direction: ClientToBroker, Kind: KindCommand,
		NewPayload: func() any { return &ClusterNamePayload{} }},
	{Name: ChannelDeleteRun, Direction: ClientToBroker, Kind: KindCommand,
		NewPayload: func() any { return &RunPayload{} }},
	{Name: ChannelSetRunID, Direction: ClientToBroker, Kind: KindCommand,
		NewPayload: func() any { return &RunPayload{} }},
	{Name: ChannelResetRunID, Direction: ClientToBroker, Kind: KindCommand},
	{Name: ChannelError, Direction: BrokerToClient, Kind: KindBroadcast,
		NewPayload: func() any { return &ErrorMessage{} }},
}

// Channels returns the full channel catalog.
func Channels() []Channel {
	out := make([]Channel, len(registry))
	copy(out, registry)
	return out
}

// ChannelByName looks up a catalog entry.
func ChannelByName(name string) (Channel, bool) {
	for _, ch := range registry {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}

// BroadcastChannels returns the broker-to-client broadcast channels.
func BroadcastChannels() []Channel {
	var out []Channel
	for _, ch := range registry {
		if ch.Kind == KindBroadcast {
			out = append(out, ch)
		}
	}
	return out
}
