// Package wire 实现客户端与中继之间的 NIP-01 帧编解码
//
// 所有帧都是 JSON 数组，首元素为消息类型：
//
//	客户端 → 中继: ["REQ", subID, filter...]  ["EVENT", event]  ["CLOSE", subID]  ["AUTH", event]
//	中继 → 客户端: ["EVENT", subID, event]  ["EOSE", subID]  ["OK", eventID, bool, reason]
//	              ["NOTICE", text]  ["CLOSED", subID, reason]  ["AUTH", challenge]
//
// 解码使用 tidwall/gjson 遍历外层数组，只对消息体做一次反序列化。
// 无法识别的帧返回 ErrMalformedMessage。
package wire
