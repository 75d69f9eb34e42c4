package api

// MTypeWriteTrConf is the message type of configuration writes.
const MTypeWriteTrConf = "iqmeshNetwork_WriteTrConf"

// DefaultRepeat is the repeat count of requests without one.
const DefaultRepeat = 1

// EmbPers lists the embedded peripherals to enable or disable.
type EmbPers struct {
	Coordinator *bool `json:"coordinator,omitempty"`
	Node        *bool `json:"node,omitempty"`
	OS          *bool `json:"os,omitempty"`
	EEPROM      *bool `json:"eeprom,omitempty"`
	EEEPROM     *bool `json:"eeeprom,omitempty"`
	RAM         *bool `json:"ram,omitempty"`
	LEDR        *bool `json:"ledr,omitempty"`
	LEDG        *bool `json:"ledg,omitempty"`
	SPI         *bool `json:"spi,omitempty"`
	IO          *bool `json:"io,omitempty"`
	Thermometer *bool `json:"thermometer,omitempty"`
	PWM         *bool `json:"pwm,omitempty"`
	UART        *bool `json:"uart,omitempty"`
	FRC         *bool `json:"frc,omitempty"`
}

// ConfigByte is one raw configuration byte of a request.
type ConfigByte struct {
	Address uint8 `json:"address"`
	Value   uint8 `json:"value"`
	Mask    uint8 `json:"mask"`
}

// WriteParams is the req object of a write request. Absent fields are not
// written.
type WriteParams struct {
	DeviceAddr *int `json:"deviceAddr"`
	HWPID      *int `json:"hwpId,omitempty"`

	EmbPers *EmbPers `json:"embPers,omitempty"`

	RFChannelA      *int `json:"rfChannelA,omitempty"`
	RFChannelB      *int `json:"rfChannelB,omitempty"`
	RFSubChannelA   *int `json:"rfSubChannelA,omitempty"`
	RFSubChannelB   *int `json:"rfSubChannelB,omitempty"`
	TxPower         *int `json:"txPower,omitempty"`
	RxFilter        *int `json:"rxFilter,omitempty"`
	LPRxTimeout     *int `json:"lpRxTimeout,omitempty"`
	RFAltDsmChannel *int `json:"rfAltDsmChannel,omitempty"`
	UARTBaudRate    *int `json:"uartBaudrate,omitempty"`

	CustomDpaHandler *bool `json:"customDpaHandler,omitempty"`
	NodeDpaInterface *bool `json:"nodeDpaInterface,omitempty"`
	DpaPeerToPeer    *bool `json:"dpaPeerToPeer,omitempty"`
	DpaAutoexec      *bool `json:"dpaAutoexec,omitempty"`
	RoutingOff       *bool `json:"routingOff,omitempty"`
	IOSetup          *bool `json:"ioSetup,omitempty"`
	PeerToPeer       *bool `json:"peerToPeer,omitempty"`
	NeverSleep       *bool `json:"neverSleep,omitempty"`
	StdAndLpNetwork  *bool `json:"stdAndLpNetwork,omitempty"`

	RFPgmDualChannel        *bool `json:"rfPgmDualChannel,omitempty"`
	RFPgmLPMode             *bool `json:"rfPgmLpMode,omitempty"`
	RFPgmEnableAfterReset   *bool `json:"rfPgmEnableAfterReset,omitempty"`
	RFPgmTerminateAfter1Min *bool `json:"rfPgmTerminateAfter1Min,omitempty"`
	RFPgmTerminateMcuPin    *bool `json:"rfPgmTerminateMcuPin,omitempty"`

	RFBand          string `json:"rfBand,omitempty"`
	AccessPassword  string `json:"accessPassword,omitempty"`
	SecurityUserKey string `json:"securityUserKey,omitempty"`

	ConfigBytes        []ConfigByte `json:"configBytes,omitempty"`
	IncludeCoordinator bool         `json:"includeCoordinator,omitempty"`
}

// RequestData is the data object of a write request.
type RequestData struct {
	MsgID         string      `json:"msgId"`
	Repeat        *int        `json:"repeat,omitempty"`
	Req           WriteParams `json:"req"`
	ReturnVerbose bool        `json:"returnVerbose,omitempty"`
}

// Request is a write request message.
type Request struct {
	MType string      `json:"mType"`
	Data  RequestData `json:"data"`
}

// WriteResult is the rsp object of a write response.
type WriteResult struct {
	DeviceAddr        uint16   `json:"deviceAddr"`
	WriteSuccess      bool     `json:"writeSuccess"`
	RestartNeeded     bool     `json:"restartNeeded"`
	NotRespondedNodes []uint16 `json:"notRespondedNodes,omitempty"`
	NotMatchedNodes   []uint16 `json:"notMatchedNodes,omitempty"`
}

// Raw is one exchange of a verbose response. Packets are dot separated
// hex bytes.
type Raw struct {
	Request        string `json:"request"`
	RequestTs      string `json:"requestTs"`
	Confirmation   string `json:"confirmation"`
	ConfirmationTs string `json:"confirmationTs"`
	Response       string `json:"response"`
	ResponseTs     string `json:"responseTs"`
}

// NodeStatus is the failure detail of one node in a verbose response.
type NodeStatus struct {
	Addr    uint16 `json:"addr"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// ResponseData is the data object of a write response.
type ResponseData struct {
	MsgID     string       `json:"msgId"`
	Rsp       *WriteResult `json:"rsp,omitempty"`
	Raw       []Raw        `json:"raw,omitempty"`
	Nodes     []NodeStatus `json:"nodes,omitempty"`
	Status    int          `json:"status"`
	StatusStr string       `json:"statusStr"`
}

// Response is a write response message.
type Response struct {
	MType string       `json:"mType"`
	Data  ResponseData `json:"data"`
}
